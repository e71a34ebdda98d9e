// Package tlsroots loads the certificates the HTTP service presents and
// trusts.
//
//   - roots.go: client CA pools from PEM files or directories
//   - keypair.go: the server key pair, reloaded when its files change
package tlsroots
