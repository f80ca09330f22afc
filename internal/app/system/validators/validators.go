// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/admitdesk/internal/app/store/oauthstate"
	"github.com/dalemusser/admitdesk/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// The validators mirror what the decoders enforce, so a bad write is
// refused at the store instead of freezing every mirror that receives it.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure(models.UsersCollection, usersSchema())
	ensure(models.ApplicationsCollection, applicationsSchema())
	ensure(models.MessagesCollection, messagesSchema())
	ensure(models.GlobalEvents.Collection(), eventsSchema(models.GlobalEvents))
	ensure(models.PublicEvents.Collection(), eventsSchema(models.PublicEvents))
	ensure(models.CredentialsCollection, credentialsSchema())

	// Change streams need the collection to exist before the first watch.
	ensure(oauthstate.Collection, nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErr(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErr(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErr(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErr(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func nonEmpty() bson.M {
	return bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"role"},
			"properties": bson.M{
				"email":      bson.M{"bsonType": "string"},
				"role":       bson.M{"enum": bson.A{string(models.RoleStandard), string(models.RoleSuperadmin)}},
				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func applicationsSchema() bson.M {
	statuses := bson.A{}
	for _, s := range models.ApplicationStatuses {
		statuses = append(statuses, string(s))
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"university", "status", "user_id"},
			"properties": bson.M{
				"university": nonEmpty(),
				"program":    bson.M{"bsonType": "string"},
				"status":     bson.M{"enum": statuses},
				"user_id":    nonEmpty(),
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"conversation_id", "text", "sender_id", "created_at"},
			"properties": bson.M{
				"conversation_id": nonEmpty(),
				"text":            nonEmpty(),
				"sender_id":       nonEmpty(),
				"sender_name":     bson.M{"bsonType": "string"},
				"created_at":      bson.M{"bsonType": "date"},
			},
		},
	}
}

func eventsSchema(kind models.EventKind) bson.M {
	types := bson.A{}
	for _, t := range []models.EventType{models.EventDeadline, models.EventWorkshop, models.EventInfoSession} {
		if kind.Allows(t) {
			types = append(types, string(t))
		}
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "type", "date"},
			"properties": bson.M{
				"title":      nonEmpty(),
				"type":       bson.M{"enum": types},
				"date":       bson.M{"bsonType": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func credentialsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"principal_id", "password_hash"},
			"properties": bson.M{
				"principal_id":  nonEmpty(),
				"password_hash": bson.M{"bsonType": "binData"},
			},
		},
	}
}
