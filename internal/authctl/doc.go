// Package authctl implements the numeria operator CLI.
//
// Commands:
//   - migrate       apply database migrations and exit
//   - sweep         delete expired tokens and sessions once
//   - create-admin  create an administrator account, reading the password
//     from the terminal without echo
//
// Server settings (-d, -k, config file, NUMERIA_* environment) are shared
// with the server binary.
package authctl
