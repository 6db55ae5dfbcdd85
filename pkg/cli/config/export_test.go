package config

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, channel string) *Slack {
	return &Slack{
		botToken: botToken,
		channel:  channel,
	}
}

// NewForumForTest creates a Forum config for testing purposes
func NewForumForTest(appID, installationID int, privateKey string) *Forum {
	return &Forum{
		appID:          appID,
		installationID: installationID,
		privateKey:     privateKey,
	}
}
