package shared

const (
	ProjectID = "activitrax-project" // Can be overridden by env var in main if needed

	ServiceStrava  = "strava"
	ServiceSpotify = "spotify"

	TopicActivityCorrelated = "topic-activity-correlated"

	CollectionUsers = "users"
)

// Services lists every provider a user can connect.
var Services = []string{ServiceStrava, ServiceSpotify}
