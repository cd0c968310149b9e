// Package defects implements the backend of a construction-site defect
// tracker: registration with email confirmation, bearer token
// authentication, and role gated access to projects, stages, defects,
// comments and attachments.
//
// Registration:
//   - RegisterUserHandler validates the payload, checks login and email
//     uniqueness, and sends the confirmation email before any user row is
//     written. A failed send leaves no trace in the users table.
//   - AccountVerificationHandler consumes the one-time registration token.
//     A user with a pending token can neither log in nor pass the Guard.
//
// Authentication and authorization:
//   - Auther.Login verifies credentials and issues a JWT whose only custom
//     claim is the user's email. Role and login are re-resolved on every
//     request by the Guard, so role changes apply immediately.
//   - Policy encodes the observer/engineer/manager/admin matrix.
//
// Defects:
//   - UpdateDefectHandler applies an explicit DefectPatch and writes one
//     DefectHistory row per changed field in the same transaction.
package defects
