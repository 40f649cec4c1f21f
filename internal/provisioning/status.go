package provisioning

import (
	"context"

	"hostbot/internal/panel"
)

// IsAutoProvisioningEnabled reports whether confirmed orders are
// provisioned without an admin command.
func (o *Orchestrator) IsAutoProvisioningEnabled() bool {
	return o.autoProvision && o.panel.Configured()
}

// AutoProvisioningStatus checks the panel connection. It never touches orders.
func (o *Orchestrator) AutoProvisioningStatus(ctx context.Context) Status {
	status := Status{
		Enabled:    o.IsAutoProvisioningEnabled(),
		Configured: o.panel.Configured(),
		PanelURL:   o.panel.BaseURL(),
	}
	if !status.Configured {
		status.Error = panel.ErrNotConfigured.Error()
		return status
	}

	nodes, err := o.listNodes(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true
	status.Nodes = len(nodes)
	return status
}

// TestConnection checks that the panel answers with the configured key.
func (o *Orchestrator) TestConnection(ctx context.Context) error {
	if !o.panel.Configured() {
		return panel.ErrNotConfigured
	}
	_, err := o.listNodes(ctx)
	return err
}

func (o *Orchestrator) listNodes(ctx context.Context) ([]panel.Node, error) {
	nodes, err := o.panel.ListNodes(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("panel connection test failed")
		return nil, err
	}
	return nodes, nil
}
