// Package di contains dependency injection tokens for the marketdata
// context.
package di

import (
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/cex"
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"
	"github.com/bud42069/Arbeit-Trage/internal/di"
)

// DI tokens for the marketdata module.
const (
	CEXConnector = "marketdata.CEXConnector"
	DEXPoller    = "marketdata.DEXPoller"
)

// GetCEXConnector resolves the CEX connector singleton.
func GetCEXConnector(sr di.ServiceRegistry) *cex.Connector {
	return di.Get[*cex.Connector](sr, CEXConnector)
}

// GetDEXPoller resolves the DEX poller singleton.
func GetDEXPoller(sr di.ServiceRegistry) *dex.Poller {
	return di.Get[*dex.Poller](sr, DEXPoller)
}
