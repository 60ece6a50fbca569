package instance

import "github.com/angelmondragon/bedbroker-backend/pkg/env"

// GetID names this process in logs and lock tokens. Heroku sets DYNO;
// containers usually expose HOSTNAME.
func GetID() string {
	return env.First("local", "BEDBROKER_INSTANCE_ID", "DYNO", "HOSTNAME")
}
