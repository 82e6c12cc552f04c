//go:build dev

package authsrv

// devBypassCompiled is true only in binaries built with -tags dev
const devBypassCompiled = true
