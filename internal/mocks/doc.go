// Package mocks provides centralized mock implementations for testing.
//
// Each mock exposes a function field per interface method. A nil field falls
// back to a default: MockRequestStore delegates to its Delegate store when one
// is set, MockJWTService returns its configured Token/Claims values.
//
// Usage:
//
//	import "github.com/phrazzld/detailer-api/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    jwtService := &mocks.MockJWTService{
//	        Claims: &auth.Claims{Identity: "U1"},
//	    }
//
//	    // Use the mock in your test...
//	}
//
// When adding a new mock to this package, create a new file named after the
// interface being mocked.
package mocks
