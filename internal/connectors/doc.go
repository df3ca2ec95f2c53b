// Package connectors holds the upstream advisory sources. Each connector
// implements driven.AdvisorySource for one remote store; github is the only
// one today.
package connectors
