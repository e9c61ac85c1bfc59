package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"product-wizard-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DynamoAPI is the slice of the DynamoDB client the repo needs.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoProductRepo stores products in a table keyed by `product_id`.
type DynamoProductRepo struct {
	client DynamoAPI
	table  string
}

func NewDynamoProductRepo(client DynamoAPI, table string) *DynamoProductRepo {
	return &DynamoProductRepo{client: client, table: table}
}

// money is kept as a decimal string so no precision is lost in transit.
type ddbVariantOption struct {
	Value         string  `dynamodbav:"value"`
	PriceOverride *string `dynamodbav:"price_override,omitempty"`
	StockOverride *int    `dynamodbav:"stock_override,omitempty"`
}

type ddbVariantGroup struct {
	Name    string             `dynamodbav:"name"`
	Options []ddbVariantOption `dynamodbav:"options"`
}

type ddbProduct struct {
	ProductID       string            `dynamodbav:"product_id"`
	IdentifierCode  *string           `dynamodbav:"identifier_code,omitempty"`
	Name            string            `dynamodbav:"name"`
	Description     *string           `dynamodbav:"description,omitempty"`
	Category        string            `dynamodbav:"category"`
	Price           string            `dynamodbav:"price"`
	DiscountPrice   *string           `dynamodbav:"discount_price,omitempty"`
	Quantity        int               `dynamodbav:"quantity"`
	Images          []string          `dynamodbav:"images,omitempty"`
	VariantGroups   []ddbVariantGroup `dynamodbav:"variant_groups,omitempty"`
	OnlinePurchase  bool              `dynamodbav:"online_purchase"`
	ReservationOnly bool              `dynamodbav:"reservation_only"`
	InStoreOnly     bool              `dynamodbav:"in_store_only"`
	Keywords        []string          `dynamodbav:"keywords,omitempty"`
	OptimizedTitle  *string           `dynamodbav:"optimized_title,omitempty"`
	PublishAt       *string           `dynamodbav:"publish_at,omitempty"`
	ExpireAt        *string           `dynamodbav:"expire_at,omitempty"`
	IsShared        bool              `dynamodbav:"is_shared_external_record"`
	IsActive        bool              `dynamodbav:"is_active"`
	IsFeatured      bool              `dynamodbav:"is_featured"`
	CreatedAt       string            `dynamodbav:"created_at"`
	UpdatedAt       string            `dynamodbav:"updated_at"`
}

// Create writes a new product. An existing item with the same id is never
// overwritten.
func (d *DynamoProductRepo) Create(ctx context.Context, product *models.Product) error {
	item, err := attributevalue.MarshalMap(toDDB(product))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(product_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrProductExists
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"product_id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(d.table), Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrProductNotFound
	}
	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return fromDDB(dp)
}

func toDDB(p *models.Product) ddbProduct {
	dp := ddbProduct{
		ProductID:       p.ID.String(),
		Name:            p.Name,
		Category:        p.Category,
		Price:           p.Price.String(),
		Quantity:        p.Quantity,
		Images:          p.Images,
		OnlinePurchase:  p.SellingModes.OnlinePurchase,
		ReservationOnly: p.SellingModes.ReservationOnly,
		InStoreOnly:     p.SellingModes.InStoreOnly,
		Keywords:        p.SEO.Keywords,
		IsShared:        p.IsSharedExternalRecord,
		IsActive:        p.IsActive,
		IsFeatured:      p.IsFeatured,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
	if p.IdentifierCode != "" {
		dp.IdentifierCode = aws.String(p.IdentifierCode)
	}
	if p.Description != "" {
		dp.Description = aws.String(p.Description)
	}
	if p.DiscountPrice != nil {
		dp.DiscountPrice = aws.String(p.DiscountPrice.String())
	}
	if p.SEO.OptimizedTitle != "" {
		dp.OptimizedTitle = aws.String(p.SEO.OptimizedTitle)
	}
	if p.ScheduleWindow.PublishAt != nil {
		dp.PublishAt = aws.String(p.ScheduleWindow.PublishAt.UTC().Format(time.RFC3339))
	}
	if p.ScheduleWindow.ExpireAt != nil {
		dp.ExpireAt = aws.String(p.ScheduleWindow.ExpireAt.UTC().Format(time.RFC3339))
	}
	for _, g := range p.VariantGroups {
		dg := ddbVariantGroup{Name: g.Name}
		for _, o := range g.Options {
			do := ddbVariantOption{Value: o.Value, StockOverride: o.StockOverride}
			if o.PriceOverride != nil {
				do.PriceOverride = aws.String(o.PriceOverride.String())
			}
			dg.Options = append(dg.Options, do)
		}
		dp.VariantGroups = append(dp.VariantGroups, dg)
	}
	return dp
}

func fromDDB(dp ddbProduct) (*models.Product, error) {
	id, err := uuid.Parse(dp.ProductID)
	if err != nil {
		return nil, fmt.Errorf("parse product_id: %w", err)
	}
	price, err := decimal.NewFromString(dp.Price)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	p := &models.Product{
		ID:       id,
		Name:     dp.Name,
		Category: dp.Category,
		Price:    price,
		Quantity: dp.Quantity,
		Images:   dp.Images,
		SellingModes: models.SellingModes{
			OnlinePurchase:  dp.OnlinePurchase,
			ReservationOnly: dp.ReservationOnly,
			InStoreOnly:     dp.InStoreOnly,
		},
		SEO:                    models.SEO{Keywords: dp.Keywords},
		IsSharedExternalRecord: dp.IsShared,
		IsActive:               dp.IsActive,
		IsFeatured:             dp.IsFeatured,
	}
	if dp.IdentifierCode != nil {
		p.IdentifierCode = *dp.IdentifierCode
	}
	if dp.Description != nil {
		p.Description = *dp.Description
	}
	if dp.OptimizedTitle != nil {
		p.SEO.OptimizedTitle = *dp.OptimizedTitle
	}
	if dp.DiscountPrice != nil {
		if v, err := decimal.NewFromString(*dp.DiscountPrice); err == nil {
			p.DiscountPrice = &v
		}
	}
	p.ScheduleWindow.PublishAt = parseTimePtr(dp.PublishAt)
	p.ScheduleWindow.ExpireAt = parseTimePtr(dp.ExpireAt)
	if t, err := time.Parse(time.RFC3339, dp.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, dp.UpdatedAt); err == nil {
		p.UpdatedAt = t
	}
	for _, dg := range dp.VariantGroups {
		g := models.VariantGroup{Name: dg.Name}
		for _, do := range dg.Options {
			o := models.VariantOption{Value: do.Value, StockOverride: do.StockOverride}
			if do.PriceOverride != nil {
				if v, err := decimal.NewFromString(*do.PriceOverride); err == nil {
					o.PriceOverride = &v
				}
			}
			g.Options = append(g.Options, o)
		}
		p.VariantGroups = append(p.VariantGroups, g)
	}
	return p, nil
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
