// Package tokenstore persists the serialized token session between CLI runs.
//
// Three backends are available:
//   - File: local file written atomically with 0600 permissions
//   - Env: read-only access to an environment variable, for CI and containers
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, Secret Service)
//
// A store that holds nothing reports ErrNotFound so callers can tell an absent
// session from a broken backend.
package tokenstore
