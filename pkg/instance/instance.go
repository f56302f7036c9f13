// Package instance derives a stable identifier for this agent process.
package instance

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

const appID = "trading-agent"

// ID returns AGENT_INSTANCE_ID when set, otherwise an app-scoped hash of the
// machine id. Hosts without a readable machine id get a random id per run.
func ID() string {
	if v := os.Getenv("AGENT_INSTANCE_ID"); v != "" {
		return v
	}
	if id, err := machineid.ProtectedID(appID); err == nil && id != "" {
		return id[:16]
	}
	return "ephemeral-" + uuid.NewString()[:8]
}
