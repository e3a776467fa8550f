// Package di contains dependency injection tokens for the execution
// context.
package di

import (
	executionapp "github.com/bud42069/Arbeit-Trage/business/execution/app"
	"github.com/bud42069/Arbeit-Trage/internal/di"
)

// DI tokens for the execution module.
const (
	Engine = "execution.Engine"
)

// GetEngine resolves the execution engine singleton.
func GetEngine(sr di.ServiceRegistry) *executionapp.Engine {
	return di.Get[*executionapp.Engine](sr, Engine)
}
