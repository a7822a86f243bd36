// Package permission maps permission names onto a 128-bit mask, compiles
// role grants into masks and authorizes a user within a tenant.
//
// # Model
//
// A [Registry] assigns each permission name a stable bit. A [RoleTable]
// compiles each role's grants into a [Mask]; the wildcard "*" sets the
// reserved root bit, which satisfies every check. An [Authorizer] resolves
// a user's role through a [RoleProvider] and tests the requested bit.
//
// # Providers
//
// [StaticRoleProvider] serves assignments from memory. [PostgresRoleProvider]
// reads gogate_user_roles through pgx.
//
// # What this package must NOT do
//
//   - Import goGate, session or tenant.
//   - Rewrite the role table after [RoleTable.Freeze].
package permission
