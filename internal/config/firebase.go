package config

import (
	"context"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// NewFirebaseMessaging builds the FCM client used by the push channel.
// Push is optional: when credentials are not configured the client is nil
// and the push dispatcher is simply not registered.
func NewFirebaseMessaging(cfg *Config) (*messaging.Client, error) {
	if cfg.FirebaseCredentialsFile == "" {
		log.Println("Firebase credentials not provided, push channel disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	app, err := firebase.NewApp(context.Background(), &firebase.Config{
		ProjectID: cfg.FirebaseProjectID,
	}, opt)
	if err != nil {
		return nil, err
	}

	return app.Messaging(context.Background())
}
