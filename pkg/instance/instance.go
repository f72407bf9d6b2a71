package instance

import "github.com/angelmondragon/viylo-storefront/pkg/env"

// GetID returns the process instance identifier used to tag logs.
func GetID() string {
	return env.First("local", "VIYLO_INSTANCE_ID", "DYNO")
}
