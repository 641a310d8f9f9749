package infrastructure

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"staybook/internal/pkg/database"
	"staybook/internal/service/booking/domain"
)

// stepClock 每次调用前进一分钟，保证创建时间严格递增
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

type testStore interface {
	domain.Storage
	domain.CatalogSeeder
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "staybook.db")), database.NewGormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// forEachStore 对内存实现和 GORM 实现跑同一组用例
func forEachStore(t *testing.T, fn func(t *testing.T, store testStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStorage(WithClock(newStepClock().Now)))
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, NewDatabaseStorage(openSQLite(t), WithClock(newStepClock().Now)))
	})
}

func strPtr(s string) *string { return &s }

func TestStorage_UserLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()

		if _, err := store.GetUser(ctx, "u-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetUser on empty store: got %v, want ErrNotFound", err)
		}

		created, err := store.UpsertUser(ctx, &domain.UpsertUser{
			ID:        "u-1",
			Email:     strPtr("an@example.com"),
			FirstName: "An",
			LastName:  "Nguyen",
		})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if created.ID != "u-1" || created.FirstName != "An" || created.Email == nil || *created.Email != "an@example.com" {
			t.Fatalf("unexpected user after insert: %+v", created)
		}

		updated, err := store.UpsertUser(ctx, &domain.UpsertUser{
			ID:        "u-1",
			Email:     strPtr("an@example.com"),
			FirstName: "Annie",
			LastName:  "Nguyen",
		})
		if err != nil {
			t.Fatalf("UpsertUser on conflict: %v", err)
		}
		if updated.FirstName != "Annie" {
			t.Errorf("FirstName = %q, want Annie", updated.FirstName)
		}
		if !updated.UpdatedAt.After(created.UpdatedAt) {
			t.Errorf("UpdatedAt not refreshed: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
		}
		if !updated.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt changed on conflict: %v -> %v", created.CreatedAt, updated.CreatedAt)
		}

		profile, err := store.UpdateUser(ctx, "u-1", domain.ProfileUpdate{LastName: strPtr("Tran")})
		if err != nil {
			t.Fatalf("UpdateUser: %v", err)
		}
		if profile.FirstName != "Annie" || profile.LastName != "Tran" {
			t.Errorf("UpdateUser changed the wrong fields: %+v", profile)
		}
		if profile.Email == nil || *profile.Email != "an@example.com" {
			t.Errorf("UpdateUser touched email: %v", profile.Email)
		}
		if !profile.UpdatedAt.After(updated.UpdatedAt) {
			t.Errorf("UpdateUser did not refresh UpdatedAt")
		}

		if err := store.DeleteUser(ctx, "u-1"); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		if err := store.DeleteUser(ctx, "u-1"); err != nil {
			t.Fatalf("second DeleteUser should be a no-op, got %v", err)
		}
		if _, err := store.GetUser(ctx, "u-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetUser after delete: got %v, want ErrNotFound", err)
		}
	})
}

func TestStorage_UpdateUnknownUserDoesNotCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		_, err := store.UpdateUser(ctx, "ghost", domain.ProfileUpdate{FirstName: strPtr("Ghost")})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("UpdateUser: got %v, want ErrNotFound", err)
		}
		if _, err := store.GetUser(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("UpdateUser created a row: %v", err)
		}
	})
}

func TestStorage_UpsertGeneratesID(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		user, err := store.UpsertUser(context.Background(), &domain.UpsertUser{FirstName: "Nameless"})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if user.ID == "" {
			t.Fatal("expected a generated id")
		}
	})
}

func TestStorage_Posts(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		inputs := []domain.InsertPost{
			{Title: "Garden room", Description: "d", ImageURL: "/a.png", Price: 80, Tags: []string{"garden", "budget"}},
			{Title: "Ocean suite", Description: "d", ImageURL: "/b.png", Price: 300, Tags: []string{"ocean view", "suite", "beach"}},
			{Title: "No tags", Description: "d", ImageURL: "/c.png", Price: 50},
		}
		var ids []string
		for i := range inputs {
			post, err := store.CreatePost(ctx, &inputs[i])
			if err != nil {
				t.Fatalf("CreatePost %d: %v", i, err)
			}
			if post.ID == "" || post.CreatedAt.IsZero() {
				t.Fatalf("server fields not populated: %+v", post)
			}
			ids = append(ids, post.ID)
		}

		all, err := store.GetAllPosts(ctx, "")
		if err != nil {
			t.Fatalf("GetAllPosts: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("got %d posts, want 3", len(all))
		}
		for i, want := range []string{ids[2], ids[1], ids[0]} {
			if all[i].ID != want {
				t.Errorf("position %d: got %s, want %s (newest first)", i, all[i].ID, want)
			}
		}
		if all[0].Tags == nil || len(all[0].Tags) != 0 {
			t.Errorf("post without tags should have an empty, non-nil list: %#v", all[0].Tags)
		}

		beach, err := store.GetAllPosts(ctx, "beach")
		if err != nil {
			t.Fatalf("GetAllPosts(beach): %v", err)
		}
		if len(beach) != 1 || beach[0].ID != ids[1] {
			t.Fatalf("tag filter returned %+v", beach)
		}

		upper, err := store.GetAllPosts(ctx, "Beach")
		if err != nil {
			t.Fatalf("GetAllPosts(Beach): %v", err)
		}
		if len(upper) != 0 {
			t.Errorf("tag filter should be case-sensitive, got %d posts", len(upper))
		}

		partial, err := store.GetAllPosts(ctx, "ocean")
		if err != nil {
			t.Fatalf("GetAllPosts(ocean): %v", err)
		}
		if len(partial) != 0 {
			t.Errorf("tag filter should match whole tags only, got %d posts", len(partial))
		}

		got, err := store.GetPost(ctx, ids[1])
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		wantTags := []string{"ocean view", "suite", "beach"}
		if fmt.Sprint(got.Tags) != fmt.Sprint(wantTags) {
			t.Errorf("tags = %v, want %v in submitted order", got.Tags, wantTags)
		}

		if _, err := store.GetPost(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetPost(missing): got %v, want ErrNotFound", err)
		}
	})
}

func TestStorage_Promotions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		validUntil := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		var ids []string
		for _, code := range []string{"SUMMER2024", "EARLYBIRD", "summerfun"} {
			p, err := store.CreatePromotion(ctx, &domain.InsertPromotion{
				Code:               code,
				Title:              code,
				Description:        "d",
				DiscountPercentage: 10,
				ImageURL:           "/p.png",
				ValidUntil:         validUntil,
			})
			if err != nil {
				t.Fatalf("CreatePromotion(%s): %v", code, err)
			}
			ids = append(ids, p.ID)
		}

		all, err := store.GetAllPromotions(ctx, "")
		if err != nil {
			t.Fatalf("GetAllPromotions: %v", err)
		}
		if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
			t.Fatalf("promotions not newest first: %+v", all)
		}

		summer, err := store.GetAllPromotions(ctx, "uMmEr")
		if err != nil {
			t.Fatalf("GetAllPromotions(uMmEr): %v", err)
		}
		if len(summer) != 2 || summer[0].Code != "summerfun" || summer[1].Code != "SUMMER2024" {
			t.Fatalf("code filter returned %+v", summer)
		}

		wildcard, err := store.GetAllPromotions(ctx, "%")
		if err != nil {
			t.Fatalf("GetAllPromotions(%%): %v", err)
		}
		if len(wildcard) != 0 {
			t.Errorf("%% must be matched literally, got %d promotions", len(wildcard))
		}

		got, err := store.GetPromotion(ctx, ids[1])
		if err != nil {
			t.Fatalf("GetPromotion: %v", err)
		}
		if got.Code != "EARLYBIRD" || !got.ValidUntil.Equal(validUntil) {
			t.Errorf("unexpected promotion: %+v", got)
		}

		if _, err := store.GetPromotion(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetPromotion(missing): got %v, want ErrNotFound", err)
		}

		_, err = store.CreatePromotion(ctx, &domain.InsertPromotion{Code: "EARLYBIRD", Title: "again", ValidUntil: validUntil})
		if !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("duplicate promotion code: got %v, want ErrDuplicate", err)
		}
	})
}

func TestStorage_DuplicateCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		in := &domain.InsertPromotion{Code: "WEEKEND15", Title: "t", ValidUntil: time.Now().Add(time.Hour)}
		if _, err := store.CreatePromotion(ctx, in); err != nil {
			t.Fatalf("CreatePromotion: %v", err)
		}
		for _, code := range []string{"WEEKEND15", "weekend15"} {
			again := *in
			again.Code = code
			if _, err := store.CreatePromotion(ctx, &again); !errors.Is(err, domain.ErrDuplicate) {
				t.Errorf("CreatePromotion(%s): got %v, want ErrDuplicate", code, err)
			}
		}
		all, err := store.GetAllPromotions(ctx, "")
		if err != nil {
			t.Fatalf("GetAllPromotions: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("rejected promotions were stored: %d rows", len(all))
		}
	})
}

func TestStorage_DuplicateEmail(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		if _, err := store.UpsertUser(ctx, &domain.UpsertUser{ID: "a", Email: strPtr("x@example.com"), FirstName: "Owner"}); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		_, err := store.UpsertUser(ctx, &domain.UpsertUser{ID: "b", Email: strPtr("x@example.com"), FirstName: "Intruder"})
		if !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("got %v, want ErrDuplicate", err)
		}

		// 原用户不受影响，新用户也没有被创建
		owner, err := store.GetUser(ctx, "a")
		if err != nil {
			t.Fatalf("GetUser(a): %v", err)
		}
		if owner.FirstName != "Owner" || owner.Email == nil || *owner.Email != "x@example.com" {
			t.Errorf("existing user was modified: %+v", owner)
		}
		if _, err := store.GetUser(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetUser(b): got %v, want ErrNotFound", err)
		}

		// 同一个 id 重复使用自己的 email 不算冲突
		if _, err := store.UpsertUser(ctx, &domain.UpsertUser{ID: "a", Email: strPtr("x@example.com"), FirstName: "Owner 2"}); err != nil {
			t.Errorf("re-upserting the owner: %v", err)
		}
		// 不带 email 的用户可以有多个
		for _, id := range []string{"c", "d"} {
			if _, err := store.UpsertUser(ctx, &domain.UpsertUser{ID: id}); err != nil {
				t.Errorf("UpsertUser(%s) without email: %v", id, err)
			}
		}
	})
}

func TestMemoryStorage_SameTimestampKeepsInsertOrder(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStorage(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	first, _ := store.CreatePost(ctx, &domain.InsertPost{Title: "first"})
	second, _ := store.CreatePost(ctx, &domain.InsertPost{Title: "second"})

	posts, err := store.GetAllPosts(ctx, "")
	if err != nil {
		t.Fatalf("GetAllPosts: %v", err)
	}
	if posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("ties should be broken by insertion order, newest first")
	}
}

func TestSeedCatalog(t *testing.T) {
	forEachStore(t, func(t *testing.T, store testStore) {
		ctx := context.Background()
		for round := 0; round < 2; round++ {
			posts, promotions, err := SeedCatalog(ctx, store)
			if err != nil {
				t.Fatalf("SeedCatalog round %d: %v", round, err)
			}
			if posts != len(SamplePosts()) || promotions != len(SamplePromotions()) {
				t.Fatalf("seeded %d posts / %d promotions", posts, promotions)
			}
		}

		all, err := store.GetAllPosts(ctx, "")
		if err != nil {
			t.Fatalf("GetAllPosts: %v", err)
		}
		if len(all) != len(SamplePosts()) {
			t.Errorf("reseeding should replace the catalog, got %d posts", len(all))
		}
		promos, err := store.GetAllPromotions(ctx, "")
		if err != nil {
			t.Fatalf("GetAllPromotions: %v", err)
		}
		if len(promos) != len(SamplePromotions()) {
			t.Errorf("reseeding should replace the catalog, got %d promotions", len(promos))
		}
	})
}
