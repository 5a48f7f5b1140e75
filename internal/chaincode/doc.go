// Package chaincode implements the t-drive transaction handlers: user
// registration and lookup, file metadata custody, file sharing and the
// generic asset lifecycle.
//
// Handlers are deterministic functions of their arguments and the
// committed world state. Every pre-condition is checked before the first
// write, and every JSON response is canonical so endorsing nodes return
// identical bytes. The Router maps positional string arguments onto the
// typed handlers and is what the shim runtime invokes.
//
// Client-visible failure messages match the deployed contract byte for
// byte, including its wording quirks, because clients match on them.
package chaincode
