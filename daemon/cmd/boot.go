// Package cmd provides command implementations for the smokehouse controller
// firmware.
package cmd

import (
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/services"
)

// Boot represents the boot command that starts the smokehouse controller.
type Boot struct{}

// Run executes the boot command by creating and running the orchestrator.
func (b *Boot) Run(ctx *domain.Context) error {
	return services.CreateOrchestrator(ctx).Run()
}
