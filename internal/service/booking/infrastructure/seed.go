package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"staybook/internal/service/booking/domain"
)

const (
	deluxeRoom    = "/images/Deluxe_King_Room_Interior_f44964f2.png"
	oceanSuite    = "/images/Ocean_View_Suite_Interior_a985a0c3.png"
	executiveRoom = "/images/Executive_Business_Room_153fcf04.png"
	promoBanner1  = "/images/Hotel_Promotion_Banner_Design_014b7bb6.png"
	promoBanner2  = "/images/Summer_Promotion_Banner_43ef32c1.png"
)

// SamplePosts 是演示用的客房数据
func SamplePosts() []domain.InsertPost {
	return []domain.InsertPost{
		{
			Title:       "Deluxe King - City View",
			Description: "Spacious room with a premium king bed and a view over the city centre. Flat-screen TV, minibar, in-room safe and a rain shower.",
			ImageURL:    deluxeRoom,
			Tags:        []string{"deluxe", "king bed", "city view", "couples"},
			Price:       150,
		},
		{
			Title:       "Premium Ocean View Suite",
			Description: "Suite with a separate living room, panoramic sea view, large balcony and a jacuzzi. Breakfast and late check-out included.",
			ImageURL:    oceanSuite,
			Tags:        []string{"suite", "ocean view", "luxury", "balcony", "romantic"},
			Price:       350,
		},
		{
			Title:       "Executive Room - For Business Travellers",
			Description: "Large desk with an ergonomic chair, printer and scanner, plus Executive Lounge access with breakfast buffet.",
			ImageURL:    executiveRoom,
			Tags:        []string{"executive", "business", "workspace", "lounge access"},
			Price:       200,
		},
		{
			Title:       "Deluxe Twin - For Friends",
			Description: "Two premium single beds, modern bathroom, flat-screen TV and free WiFi.",
			ImageURL:    deluxeRoom,
			Tags:        []string{"deluxe", "twin beds", "friends", "city view"},
			Price:       140,
		},
		{
			Title:       "Junior Suite",
			Description: "45m² with a partly separated living area, king bed and a sofa bed for children.",
			ImageURL:    oceanSuite,
			Tags:        []string{"suite", "family", "spacious", "sofa bed"},
			Price:       250,
		},
		{
			Title:       "Premium Deluxe - High Floor",
			Description: "Upgraded deluxe room on floors 15-20 with a Nespresso machine, premium bedding and a welcome drink.",
			ImageURL:    executiveRoom,
			Tags:        []string{"deluxe", "premium", "high floor", "upgraded"},
			Price:       180,
		},
	}
}

// SamplePromotions 是演示用的促销数据
func SamplePromotions() []domain.InsertPromotion {
	return []domain.InsertPromotion{
		{
			Code:               "SUMMER2024",
			Title:              "Summer deal - 25% off every booking",
			Description:        "25% off all room types when booked at least 7 days ahead, for stays of 2 nights or more.",
			DiscountPercentage: 25,
			ImageURL:           promoBanner2,
			ValidUntil:         time.Date(2024, 8, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			Code:               "EARLYBIRD",
			Title:              "Early bird - 20% off",
			Description:        "Book 30 days ahead and save 20%. Full prepayment, non-refundable.",
			DiscountPercentage: 20,
			ImageURL:           promoBanner1,
			ValidUntil:         time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			Code:               "WEEKEND15",
			Title:              "Happy weekend - 15% off",
			Description:        "15% off Friday to Sunday nights when booked at least 3 days ahead.",
			DiscountPercentage: 15,
			ImageURL:           promoBanner2,
			ValidUntil:         time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			Code:               "LONGSTAY30",
			Title:              "Long stay - up to 30% off",
			Description:        "20% off 7-13 nights, 25% off 14-29 nights, 30% off 30 nights or more.",
			DiscountPercentage: 30,
			ImageURL:           promoBanner1,
			ValidUntil:         time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
		},
	}
}

// CatalogStore 是初始化数据需要的存储能力
type CatalogStore interface {
	domain.Storage
	domain.CatalogSeeder
}

// SeedCatalog 清空并写入演示数据，返回写入的客房和促销数量
func SeedCatalog(ctx context.Context, store CatalogStore) (posts, promotions int, err error) {
	if err := store.ResetCatalog(ctx); err != nil {
		return 0, 0, err
	}
	for _, p := range SamplePosts() {
		p := p
		if _, err := store.CreatePost(ctx, &p); err != nil {
			return posts, promotions, errors.Wrapf(err, "seed post %q", p.Title)
		}
		posts++
	}
	for _, p := range SamplePromotions() {
		p := p
		if _, err := store.CreatePromotion(ctx, &p); err != nil {
			return posts, promotions, errors.Wrapf(err, "seed promotion %s", p.Code)
		}
		promotions++
	}
	return posts, promotions, nil
}
