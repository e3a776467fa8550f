// Package di contains dependency injection tokens for the risk context.
package di

import (
	riskapp "github.com/bud42069/Arbeit-Trage/business/risk/app"
	"github.com/bud42069/Arbeit-Trage/internal/di"
)

// DI tokens for the risk module.
const (
	RiskService = "risk.RiskService"
)

// GetRiskService resolves the process-wide RiskService singleton.
func GetRiskService(sr di.ServiceRegistry) *riskapp.RiskService {
	return di.Get[*riskapp.RiskService](sr, RiskService)
}
