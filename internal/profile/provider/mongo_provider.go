package provider

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"beacon/internal/constants"
	"beacon/internal/event"
)

type MongoProvider struct {
	collection *mongo.Collection
}

func NewMongoProvider(client *mongo.Client, database, collection string) *MongoProvider {
	if database == "" {
		database = constants.DefaultMongoDatabase
	}
	if collection == "" {
		collection = constants.DefaultMongoCollection
	}
	return &MongoProvider{collection: client.Database(database).Collection(collection)}
}

func (p *MongoProvider) Name() string {
	return constants.ProviderNameMongoDB
}

type userDocument struct {
	DeviceID   string                 `bson:"device_id"`
	MPID       string                 `bson:"mpid"`
	Identities map[string]string      `bson:"identities"`
	Attributes map[string]interface{} `bson:"attributes"`
	Consent    *consentDocument       `bson:"consent,omitempty"`
}

type consentDocument struct {
	GDPR map[string]gdprDocument `bson:"gdpr"`
}

type gdprDocument struct {
	Consented  interface{} `bson:"consented,omitempty"`
	Timestamp  interface{} `bson:"timestamp,omitempty"`
	Document   interface{} `bson:"document,omitempty"`
	Location   interface{} `bson:"location,omitempty"`
	HardwareID interface{} `bson:"hardware_id,omitempty"`
}

func (p *MongoProvider) Fetch(ctx context.Context, deviceID string) (*event.User, error) {
	var doc userDocument
	err := p.collection.FindOne(ctx, bson.M{"device_id": deviceID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb query failed: %w", err)
	}

	return doc.toUser(), nil
}

func (d *userDocument) toUser() *event.User {
	user := &event.User{
		MPID:       d.MPID,
		Identities: d.Identities,
		Attributes: d.Attributes,
	}
	if d.Consent != nil {
		gdpr := make(map[string]event.GDPRConsent, len(d.Consent.GDPR))
		for purpose, c := range d.Consent.GDPR {
			gdpr[purpose] = event.GDPRConsent{
				Consented:  c.Consented,
				Timestamp:  c.Timestamp,
				Document:   c.Document,
				Location:   c.Location,
				HardwareID: c.HardwareID,
			}
		}
		user.ConsentState = &event.ConsentState{GDPR: gdpr}
	}
	return user
}
