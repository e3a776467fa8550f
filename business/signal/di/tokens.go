// Package di contains dependency injection tokens for the signal context.
package di

import (
	signalapp "github.com/bud42069/Arbeit-Trage/business/signal/app"
	"github.com/bud42069/Arbeit-Trage/internal/di"
)

// DI tokens for the signal module.
const (
	Engine = "signal.Engine"
)

// GetEngine resolves the signal engine singleton.
func GetEngine(sr di.ServiceRegistry) *signalapp.Engine {
	return di.Get[*signalapp.Engine](sr, Engine)
}
