package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const notificationsCollection = "notifications"

// notificationDocument keeps the compact field names of the existing collections.
type notificationDocument struct {
	ID                string                    `bson:"_id"`
	Kind              string                    `bson:"kd"`
	UserID            string                    `bson:"uid"`
	ActionCode        int                       `bson:"ac"`
	Message           *string                   `bson:"rm,omitempty"`
	ShortMessage      *string                   `bson:"sm,omitempty"`
	FullMessage       *string                   `bson:"fm,omitempty"`
	Subject           *string                   `bson:"sb,omitempty"`
	DeliveryPlatforms []string                  `bson:"pfs"`
	Meta              map[string]any            `bson:"oph"`
	StatusLog         []domain.StatusEntry      `bson:"sls"`
	DeliverySettings  map[string]map[string]any `bson:"dsh"`
	CreatedAt         time.Time                 `bson:"created_at"`
	UpdatedAt         time.Time                 `bson:"updated_at"`
}

func notificationDocumentFromDomain(n *domain.Notification) *notificationDocument {
	doc := &notificationDocument{
		ID:                n.ID,
		Kind:              n.Kind,
		UserID:            n.UserID,
		ActionCode:        n.ActionCode,
		Message:           n.Message,
		ShortMessage:      n.ShortMessage,
		FullMessage:       n.FullMessage,
		Subject:           n.Subject,
		DeliveryPlatforms: n.DeliveryPlatforms,
		Meta:              n.Meta,
		StatusLog:         n.StatusLog,
		DeliverySettings:  n.DeliverySettings,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
	if doc.DeliveryPlatforms == nil {
		doc.DeliveryPlatforms = []string{}
	}
	if doc.StatusLog == nil {
		doc.StatusLog = []domain.StatusEntry{}
	}
	if doc.DeliverySettings == nil {
		doc.DeliverySettings = map[string]map[string]any{}
	}
	return doc
}

func (d *notificationDocument) toDomain() *domain.Notification {
	n := &domain.Notification{
		ID:                d.ID,
		Kind:              d.Kind,
		UserID:            d.UserID,
		ActionCode:        d.ActionCode,
		Message:           d.Message,
		ShortMessage:      d.ShortMessage,
		FullMessage:       d.FullMessage,
		Subject:           d.Subject,
		DeliveryPlatforms: d.DeliveryPlatforms,
		Meta:              d.Meta,
		StatusLog:         d.StatusLog,
		DeliverySettings:  d.DeliverySettings,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Persisted:         true,
	}
	if n.DeliverySettings == nil {
		n.DeliverySettings = map[string]map[string]any{}
	}
	return n
}

type MongoNotificationRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoNotificationRepo(db *mongo.Database) *MongoNotificationRepo {
	return &MongoNotificationRepo{coll: db.Collection(notificationsCollection), now: time.Now}
}

// EnsureIndexes creates the lookup index used by sweeps and listings.
func (r *MongoNotificationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "uid", Value: 1}, {Key: "kd", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *MongoNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return domain.ErrValidation
	}
	now := r.now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, notificationDocumentFromDomain(n))
	return err
}

func (r *MongoNotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return domain.ErrValidation
	}
	n.UpdatedAt = r.now().UTC()

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": n.ID}, notificationDocumentFromDomain(n))
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoNotificationRepo) DeleteCreatedBefore(ctx context.Context, kind string, userID string, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{
		"kd":         kind,
		"uid":        userID,
		"created_at": bson.M{"$lte": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *MongoNotificationRepo) DeleteAllCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lte": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *MongoNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var doc notificationDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *MongoNotificationRepo) ListByUser(ctx context.Context, userID string, params ListParams) ([]domain.Notification, int64, error) {
	params = params.Normalize()
	filter := listFilter(userID, params)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(params.offset())).
		SetLimit(int64(params.PageSize)))
	if err != nil {
		return nil, 0, err
	}

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(docs))
	for i := range docs {
		notifications = append(notifications, *docs[i].toDomain())
	}
	return notifications, total, nil
}

func listFilter(userID string, params ListParams) bson.M {
	filter := bson.M{"uid": userID}
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		filter["kd"] = strings.TrimSpace(*params.Kind)
	}

	createdAt := bson.M{}
	if params.From != nil {
		createdAt["$gte"] = *params.From
	}
	if params.To != nil {
		createdAt["$lte"] = *params.To
	}
	if len(createdAt) > 0 {
		filter["created_at"] = createdAt
	}
	return filter
}
