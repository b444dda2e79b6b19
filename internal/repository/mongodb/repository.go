package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

const (
	collCows     = "cows"
	collMilk     = "milk_production"
	collHealth   = "health_events"
	collProfiles = "profiles"
	collReports  = "daily_reports"
)

// ReportArchive stores the daily reports produced by the reporting job.
type ReportArchive interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// MongoDBRepository implements repository.Store and ReportArchive on MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
	now    func() time.Time
}

var (
	_ repository.Store = (*MongoDBRepository)(nil)
	_ ReportArchive    = (*MongoDBRepository)(nil)
)

// NewMongoDBRepository connects to uri, verifies the connection and makes sure
// the indexes exist.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
		now:    time.Now,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collCows: {
			{Keys: bson.D{{Key: "tag_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collMilk: {
			{
				Keys:    bson.D{{Key: "cow_id", Value: 1}, {Key: "date", Value: 1}, {Key: "shift", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("cow_date_shift_unique"),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		collHealth: {
			{Keys: bson.D{{Key: "cow_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}

	for coll, idx := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.db.Collection(collReports).InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// ---- cows ----

func (r *MongoDBRepository) GetCow(ctx context.Context, id string) (*models.Cow, error) {
	return r.findCow(ctx, bson.M{"_id": id})
}

func (r *MongoDBRepository) GetCowByTag(ctx context.Context, tag string) (*models.Cow, error) {
	return r.findCow(ctx, bson.M{"tag_number": tag})
}

func (r *MongoDBRepository) findCow(ctx context.Context, filter bson.M) (*models.Cow, error) {
	var cow models.Cow
	if err := r.db.Collection(collCows).FindOne(ctx, filter).Decode(&cow); err != nil {
		return nil, mapErr("find cow", err)
	}
	return &cow, nil
}

func (r *MongoDBRepository) ListCows(ctx context.Context) ([]models.Cow, error) {
	return r.findCows(ctx, bson.M{})
}

func (r *MongoDBRepository) SearchCows(ctx context.Context, term string) ([]models.Cow, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	return r.findCows(ctx, bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"tag_number": pattern},
	}})
}

func (r *MongoDBRepository) findCows(ctx context.Context, filter bson.M) ([]models.Cow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "tag_number", Value: 1}})
	cursor, err := r.db.Collection(collCows).Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr("list cows", err)
	}

	out := []models.Cow{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mapErr("decode cows", err)
	}
	return out, nil
}

func (r *MongoDBRepository) InsertCows(ctx context.Context, cows []models.Cow) ([]models.Cow, error) {
	docs := make([]any, 0, len(cows))
	out := make([]models.Cow, 0, len(cows))
	for _, c := range cows {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		docs = append(docs, c)
		out = append(out, c)
	}
	if len(docs) == 0 {
		return out, nil
	}

	if _, err := r.db.Collection(collCows).InsertMany(ctx, docs); err != nil {
		return nil, mapErr("insert cows", err)
	}
	return out, nil
}

// ---- milk ----

func (r *MongoDBRepository) FindMilkRecord(ctx context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error) {
	var rec models.MilkRecord
	err := r.db.Collection(collMilk).
		FindOne(ctx, bson.M{"cow_id": cowID, "date": date, "shift": shift}).
		Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr("find milk record", err)
	}
	return &rec, nil
}

func (r *MongoDBRepository) GetMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	var rec models.MilkRecord
	if err := r.db.Collection(collMilk).FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		return nil, mapErr("get milk record", err)
	}

	out := []models.MilkRecord{rec}
	r.attachMilkCows(ctx, out)
	return &out[0], nil
}

func (r *MongoDBRepository) InsertMilkRecord(ctx context.Context, record models.MilkRecord) (*models.MilkRecord, error) {
	record.ID = uuid.NewString()
	record.CreatedAt = r.now().UTC()
	record.UpdatedAt = nil

	if _, err := r.db.Collection(collMilk).InsertOne(ctx, record); err != nil {
		return nil, mapErr("insert milk record", err)
	}

	out := []models.MilkRecord{record}
	r.attachMilkCows(ctx, out)
	return &out[0], nil
}

func (r *MongoDBRepository) UpdateMilkRecord(ctx context.Context, id string, record models.MilkRecord) (*models.MilkRecord, error) {
	updated := r.now().UTC()
	set := bson.M{
		"cow_id":             record.CowID,
		"date":               record.Date,
		"shift":              record.Shift,
		"amount":             record.Amount,
		"quality":            record.Quality,
		"quality_grade":      record.QualityGrade,
		"fat":                record.Fat,
		"protein":            record.Protein,
		"lactose":            record.Lactose,
		"somatic_cell_count": record.SomaticCellCount,
		"bacteria_count":     record.BacteriaCount,
		"notes":              record.Notes,
		"updated_at":         updated,
	}

	var out models.MilkRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.db.Collection(collMilk).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&out)
	if err != nil {
		return nil, mapErr("update milk record", err)
	}

	list := []models.MilkRecord{out}
	r.attachMilkCows(ctx, list)
	return &list[0], nil
}

func (r *MongoDBRepository) DeleteMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	var out models.MilkRecord
	if err := r.db.Collection(collMilk).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, mapErr("delete milk record", err)
	}
	return &out, nil
}

func (r *MongoDBRepository) ListMilkRecords(ctx context.Context, q repository.MilkQuery) ([]models.MilkRecord, error) {
	filter := bson.M{}
	if q.CowID != "" {
		filter["cow_id"] = q.CowID
	}
	if created := createdRange(q.CreatedFrom, q.CreatedTo); len(created) > 0 {
		filter["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := r.db.Collection(collMilk).Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr("list milk records", err)
	}

	out := []models.MilkRecord{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mapErr("decode milk records", err)
	}
	r.attachMilkCows(ctx, out)
	return out, nil
}

// ---- health ----

func (r *MongoDBRepository) InsertHealthRecord(ctx context.Context, record models.HealthRecord) (*models.HealthRecord, error) {
	record.ID = uuid.NewString()
	record.CreatedAt = r.now().UTC()
	record.UpdatedAt = nil
	if record.Medications == nil {
		record.Medications = []models.Medication{}
	}

	if _, err := r.db.Collection(collHealth).InsertOne(ctx, record); err != nil {
		return nil, mapErr("insert health record", err)
	}

	out := []models.HealthRecord{record}
	r.attachHealthCows(ctx, out)
	return &out[0], nil
}

func (r *MongoDBRepository) UpdateHealthRecord(ctx context.Context, id string, record models.HealthRecord) (*models.HealthRecord, error) {
	if record.Medications == nil {
		record.Medications = []models.Medication{}
	}
	set := bson.M{
		"cow_id":       record.CowID,
		"event_type":   record.EventType,
		"event_date":   record.EventDate,
		"status":       record.Status,
		"description":  record.Description,
		"medications":  record.Medications,
		"performed_by": record.PerformedBy,
		"notes":        record.Notes,
		"updated_at":   r.now().UTC(),
	}

	var out models.HealthRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.db.Collection(collHealth).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&out)
	if err != nil {
		return nil, mapErr("update health record", err)
	}

	list := []models.HealthRecord{out}
	r.attachHealthCows(ctx, list)
	return &list[0], nil
}

func (r *MongoDBRepository) DeleteHealthRecord(ctx context.Context, id string) (*models.HealthRecord, error) {
	var out models.HealthRecord
	if err := r.db.Collection(collHealth).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, mapErr("delete health record", err)
	}
	return &out, nil
}

func (r *MongoDBRepository) ListHealthRecords(ctx context.Context, q repository.HealthQuery) ([]models.HealthRecord, error) {
	filter := bson.M{}
	if q.CowID != "" {
		filter["cow_id"] = q.CowID
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := r.db.Collection(collHealth).Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr("list health records", err)
	}

	out := []models.HealthRecord{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mapErr("decode health records", err)
	}
	r.attachHealthCows(ctx, out)
	return out, nil
}

// ---- profiles ----

func (r *MongoDBRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.Collection(collProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		return nil, mapErr("get profile", err)
	}
	return &p, nil
}

func (r *MongoDBRepository) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	set := bson.M{"updated_at": r.now().UTC()}
	if update.FirstName != nil {
		set["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		set["last_name"] = *update.LastName
	}
	if update.DisplayName != nil {
		set["display_name"] = *update.DisplayName
	}

	var p models.Profile
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.db.Collection(collProfiles).FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, mapErr("update profile", err)
	}
	return &p, nil
}

// attachMilkCows decorates records with their cow. Lookup failures leave the
// records undecorated.
func (r *MongoDBRepository) attachMilkCows(ctx context.Context, records []models.MilkRecord) {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.CowID)
	}
	cows := r.cowsByID(ctx, ids)
	for i := range records {
		if c, ok := cows[records[i].CowID]; ok {
			records[i].Cow = &models.CowSummary{TagNumber: c.TagNumber, Name: c.Name, Breed: c.Breed}
		}
	}
}

func (r *MongoDBRepository) attachHealthCows(ctx context.Context, records []models.HealthRecord) {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.CowID)
	}
	cows := r.cowsByID(ctx, ids)
	for i := range records {
		if c, ok := cows[records[i].CowID]; ok {
			records[i].Cow = &models.CowSummary{TagNumber: c.TagNumber, Name: c.Name}
		}
	}
}

func (r *MongoDBRepository) cowsByID(ctx context.Context, ids []string) map[string]models.Cow {
	out := map[string]models.Cow{}
	if len(ids) == 0 {
		return out
	}

	cursor, err := r.db.Collection(collCows).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		r.logger.Warn("cow lookup failed", zap.Error(err))
		return out
	}

	var cows []models.Cow
	if err := cursor.All(ctx, &cows); err != nil {
		r.logger.Warn("cow decode failed", zap.Error(err))
		return out
	}
	for _, c := range cows {
		out[c.ID] = c
	}
	return out
}

func createdRange(from, to time.Time) bson.M {
	m := bson.M{}
	if !from.IsZero() {
		m["$gte"] = from.UTC()
	}
	if !to.IsZero() {
		m["$lt"] = to.UTC()
	}
	return m
}

// mapErr translates driver failures into repository sentinels.
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%s: %w: %w", op, repository.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
