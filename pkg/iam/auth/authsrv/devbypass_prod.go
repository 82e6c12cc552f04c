//go:build !dev

package authsrv

const devBypassCompiled = false
