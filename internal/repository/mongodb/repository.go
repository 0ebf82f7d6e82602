package mongodb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

const (
	collDailyEntries = "daily_entries"
	collIncomes      = "daily_entry_incomes"
	collReceipts     = "daily_entry_receipts"
	collParameters   = "daily_entry_parameters"
	collProductUsage = "product_usage"
	collProducts     = "products"

	collIncomeSources    = "income_sources"
	collReceiptTypes     = "receipt_types"
	collCustomParameters = "custom_parameters"
)

// MongoDBRepository stores submitted day entries in MongoDB. A unique index
// on (business_id, entry_date) provides the duplicate signal.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database

	indexed atomic.Bool
}

// NewMongoDBRepository creates the client. The driver connects lazily, so an
// unreachable server is not an error here; Probe reports reachability.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	return &MongoDBRepository{client: client, db: client.Database(dbName)}, nil
}

// EnsureIndexes creates the (business_id, entry_date) uniqueness index once.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	if r.indexed.Load() {
		return nil
	}

	_, err := r.db.Collection(collDailyEntries).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "business_id", Value: 1}, {Key: "entry_date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("business_day_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure daily entry index: %w", err)
	}

	r.indexed.Store(true)
	return nil
}

// CreateDailyRecord inserts the primary day document and returns its id.
// Without the uniqueness index a duplicate would go undetected, so the insert
// is refused until the index exists.
func (r *MongoDBRepository) CreateDailyRecord(ctx context.Context, record models.DailyRecord) (string, error) {
	if err := r.EnsureIndexes(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTransientSubmission, err)
	}

	doc := bson.D{
		{Key: "business_id", Value: record.BusinessID},
		{Key: "entry_date", Value: record.EntryDate},
		{Key: "fields", Value: record.Fields},
		{Key: "captured_at", Value: record.CapturedAt},
	}
	if record.UserID != "" {
		doc = append(doc, bson.E{Key: "user_id", Value: record.UserID})
	}

	res, err := r.db.Collection(collDailyEntries).InsertOne(ctx, doc)
	if err != nil {
		return "", classify(collDailyEntries, err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// CreateIncomeRecords inserts the nested income documents.
func (r *MongoDBRepository) CreateIncomeRecords(ctx context.Context, rows []models.IncomeRecord) error {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, bson.D{
			{Key: "daily_entry_id", Value: row.DailyRecordID},
			{Key: "income_source_id", Value: row.IncomeSourceID},
			{Key: "amount", Value: toDecimal128(row.Amount)},
			{Key: "order_count", Value: row.OrderCount},
		})
	}
	return r.insertMany(ctx, collIncomes, docs)
}

// CreateReceiptRecords inserts the nested receipt documents.
func (r *MongoDBRepository) CreateReceiptRecords(ctx context.Context, rows []models.ReceiptRecord) error {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, bson.D{
			{Key: "daily_entry_id", Value: row.DailyRecordID},
			{Key: "receipt_type_id", Value: row.ReceiptTypeID},
			{Key: "amount", Value: toDecimal128(row.Amount)},
		})
	}
	return r.insertMany(ctx, collReceipts, docs)
}

// CreateParameterValues inserts the nested custom parameter documents.
func (r *MongoDBRepository) CreateParameterValues(ctx context.Context, rows []models.ParameterValue) error {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, bson.D{
			{Key: "daily_entry_id", Value: row.DailyRecordID},
			{Key: "parameter_id", Value: row.ParameterID},
			{Key: "value", Value: toDecimal128(row.Value)},
		})
	}
	return r.insertMany(ctx, collParameters, docs)
}

// CreateProductUsage inserts the nested product usage documents.
func (r *MongoDBRepository) CreateProductUsage(ctx context.Context, rows []models.ProductUsageRecord) error {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, bson.D{
			{Key: "daily_entry_id", Value: row.DailyRecordID},
			{Key: "product_id", Value: row.ProductID},
			{Key: "opening_stock", Value: toDecimal128(row.OpeningStock)},
			{Key: "received_quantity", Value: toDecimal128(row.ReceivedQuantity)},
			{Key: "closing_stock", Value: toDecimal128(row.ClosingStock)},
			{Key: "quantity_used", Value: toDecimal128(row.QuantityUsed)},
		})
	}
	return r.insertMany(ctx, collProductUsage, docs)
}

// UpdateProductStock sets the product's current stock.
func (r *MongoDBRepository) UpdateProductStock(ctx context.Context, productID string, stock decimal.Decimal) error {
	_, err := r.db.Collection(collProducts).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: productID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "current_stock", Value: toDecimal128(stock)}}}},
	)
	if err != nil {
		return classify(collProducts, err)
	}
	return nil
}

type incomeSourceDoc struct {
	ID                  string               `bson:"_id"`
	Name                string               `bson:"name"`
	SettlementType      string               `bson:"settlement_type"`
	CommissionRate      primitive.Decimal128 `bson:"commission_rate"`
	DelayDays           *int                 `bson:"delay_days,omitempty"`
	DayOfWeek           *int                 `bson:"day_of_week,omitempty"`
	DayOfMonth          *int                 `bson:"day_of_month,omitempty"`
	BimonthlyCutoff     *int                 `bson:"bimonthly_cutoff,omitempty"`
	FirstSettlementDay  *int                 `bson:"first_settlement_day,omitempty"`
	SecondSettlementDay *int                 `bson:"second_settlement_day,omitempty"`
	CouponSettlementDay *int                 `bson:"coupon_settlement_day,omitempty"`
}

type namedDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
	Unit string `bson:"unit,omitempty"`
}

// FetchReferenceConfig loads the business' reference collections.
func (r *MongoDBRepository) FetchReferenceConfig(ctx context.Context, businessID string) (models.ReferenceConfig, error) {
	cfg := models.ReferenceConfig{BusinessID: businessID}

	var sources []incomeSourceDoc
	if err := r.findByBusiness(ctx, collIncomeSources, businessID, &sources); err != nil {
		return models.ReferenceConfig{}, err
	}
	for _, doc := range sources {
		cfg.IncomeSources = append(cfg.IncomeSources, doc.toModel())
	}

	var receipts []namedDoc
	if err := r.findByBusiness(ctx, collReceiptTypes, businessID, &receipts); err != nil {
		return models.ReferenceConfig{}, err
	}
	for _, doc := range receipts {
		cfg.ReceiptTypes = append(cfg.ReceiptTypes, models.ReceiptType{ID: doc.ID, Name: doc.Name})
	}

	var params []namedDoc
	if err := r.findByBusiness(ctx, collCustomParameters, businessID, &params); err != nil {
		return models.ReferenceConfig{}, err
	}
	for _, doc := range params {
		cfg.CustomParameters = append(cfg.CustomParameters, models.CustomParameter{ID: doc.ID, Name: doc.Name, Unit: doc.Unit})
	}

	var products []namedDoc
	if err := r.findByBusiness(ctx, collProducts, businessID, &products); err != nil {
		return models.ReferenceConfig{}, err
	}
	for _, doc := range products {
		cfg.Products = append(cfg.Products, models.Product{ID: doc.ID, Name: doc.Name, Unit: doc.Unit})
	}

	cfg.FetchedAt = time.Now().UTC()
	return cfg, nil
}

func (r *MongoDBRepository) findByBusiness(ctx context.Context, coll, businessID string, out interface{}) error {
	cursor, err := r.db.Collection(coll).Find(ctx, bson.D{{Key: "business_id", Value: businessID}})
	if err != nil {
		return fmt.Errorf("failed to query %s for %s: %w", coll, businessID, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s for %s: %w", coll, businessID, err)
	}
	return nil
}

func (d incomeSourceDoc) toModel() models.IncomeSource {
	return models.IncomeSource{
		ID:                  d.ID,
		Name:                d.Name,
		SettlementType:      models.SettlementType(d.SettlementType),
		CommissionRate:      fromDecimal128(d.CommissionRate),
		DelayDays:           d.DelayDays,
		DayOfWeek:           d.DayOfWeek,
		DayOfMonth:          d.DayOfMonth,
		BimonthlyCutoff:     d.BimonthlyCutoff,
		FirstSettlementDay:  d.FirstSettlementDay,
		SecondSettlementDay: d.SecondSettlementDay,
		CouponSettlementDay: d.CouponSettlementDay,
	}
}

// Probe pings the primary.
func (r *MongoDBRepository) Probe(ctx context.Context) bool {
	return r.client.Ping(ctx, nil) == nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) insertMany(ctx context.Context, coll string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := r.db.Collection(coll).InsertMany(ctx, docs); err != nil {
		return classify(coll, err)
	}
	return nil
}

func classify(coll string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", coll, models.ErrDuplicateRemoteRecord)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrTransientSubmission, coll, err)
}

func fromDecimal128(value primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(value.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	value, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// Out of Decimal128 range; keep the amount rather than fail the write.
		value, _ = primitive.ParseDecimal128(d.StringFixed(2))
	}
	return value
}
