package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pos/internal/models"
	"pos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestSubmitOrderConcurrency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiterA := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	waiterB := seedUser(t, ctx, pool, "Bala", models.RoleWaiter)
	seedTable(t, ctx, pool, 5)

	var wg sync.WaitGroup
	results := make(chan submitResult, 2)
	inputs := []store.SubmitOrderInput{
		{TableNumber: 5, WaiterID: waiterA, WaiterName: "Asha", Items: sampleItems()},
		{TableNumber: 5, WaiterID: waiterB, WaiterName: "Bala", Items: sampleItems()},
	}
	for _, input := range inputs {
		wg.Add(1)
		go func(in store.SubmitOrderInput) {
			defer wg.Done()
			res, err := st.SubmitOrder(ctx, in)
			results <- submitResult{res: res, err: err}
		}(input)
	}
	wg.Wait()
	close(results)

	var created, conflicts int
	for result := range results {
		switch {
		case result.err == nil && result.res.Created:
			created++
		case errors.Is(result.err, store.ErrTableConflict):
			conflicts++
		default:
			t.Fatalf("unexpected result: %+v err=%v", result.res, result.err)
		}
	}
	if created != 1 || conflicts != 1 {
		t.Fatalf("expected 1 created and 1 conflict, got %d/%d", created, conflicts)
	}

	var tableStatus string
	var lockedBy *string
	row := pool.QueryRow(ctx, `SELECT status, current_waiter_id FROM tables WHERE table_number = 5`)
	if err := row.Scan(&tableStatus, &lockedBy); err != nil {
		t.Fatalf("read table: %v", err)
	}
	if tableStatus != models.TableOccupied || lockedBy == nil {
		t.Fatalf("expected occupied table with waiter lock, got %s/%v", tableStatus, lockedBy)
	}
}

func TestSubmitOrderIdempotency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 3)

	// Tokens are opaque client strings, not UUIDs.
	requestID := "resubmit-after-timeout-42"
	input := store.SubmitOrderInput{
		RequestID:   requestID,
		TableNumber: 3,
		WaiterID:    waiter,
		WaiterName:  "Asha",
		Items:       sampleItems(),
	}
	first, err := st.SubmitOrder(ctx, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := st.SubmitOrder(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.OrderID != second.OrderID || first.Code != second.Code {
		t.Fatalf("expected same order on replay, got %+v vs %+v", first, second)
	}

	var itemCount int
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, first.OrderID)
	if err := row.Scan(&itemCount); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != len(sampleItems()) {
		t.Fatalf("replay must not append items twice, got %d", itemCount)
	}
}

func TestSubmitOrderAppendAccumulates(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 2)

	first, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 2, WaiterID: waiter, WaiterName: "Asha",
		Items: []models.OrderItem{{Name: "Paneer Tikka", UnitPrice: 350, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 2, WaiterID: waiter, WaiterName: "Asha",
		Items: []models.OrderItem{{Name: "Masala Chai", UnitPrice: 50, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Created {
		t.Fatalf("second submit should append, not create")
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("expected same order, got %s vs %s", second.OrderID, first.OrderID)
	}

	order, err := st.GetOrder(ctx, first.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if math.Abs(order.Subtotal-450) > 1e-9 {
		t.Fatalf("subtotal = %v, want 450", order.Subtotal)
	}
	if math.Abs(order.Total-517.5) > 1e-9 {
		t.Fatalf("total = %v, want 517.5", order.Total)
	}
}

func TestAdvanceStatusFlow(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 7)

	res, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 7, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := st.AdvanceStatus(ctx, res.Code, models.OrderPaid); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("pending->paid should be rejected, got %v", err)
	}

	for _, status := range []string{models.OrderPreparing, models.OrderServed, models.OrderPaid} {
		order, err := st.AdvanceStatus(ctx, res.Code, status)
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if order.Status != status {
			t.Fatalf("status = %s, want %s", order.Status, status)
		}
	}

	order, err := st.GetOrder(ctx, res.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.PaymentStatus != models.PaymentPaid {
		t.Fatalf("payment_status = %s, want paid", order.PaymentStatus)
	}

	var tableStatus string
	var lockedBy *string
	row := pool.QueryRow(ctx, `SELECT status, current_waiter_id FROM tables WHERE table_number = 7`)
	if err := row.Scan(&tableStatus, &lockedBy); err != nil {
		t.Fatalf("read table: %v", err)
	}
	if tableStatus != models.TableAvailable || lockedBy != nil {
		t.Fatalf("paid order must release table, got %s/%v", tableStatus, lockedBy)
	}

	// The table is free again for a fresh order.
	next, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 7, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(),
	})
	if err != nil {
		t.Fatalf("resubmit after paid: %v", err)
	}
	if !next.Created || next.OrderID == res.OrderID {
		t.Fatalf("expected a new order after settlement, got %+v", next)
	}
}

func TestConcurrentAppendAndSettle(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 6)

	res, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 6, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// An append and a cancellation race on the same table. Both lock the
	// table row first, so they serialize instead of deadlocking; whichever
	// commits second still succeeds (append lands on a fresh order when the
	// cancel got there first).
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
			TableNumber: 6, WaiterID: waiter, WaiterName: "Asha",
			Items: []models.OrderItem{{Name: "Masala Chai", UnitPrice: 50, Quantity: 1}},
		})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := st.AdvanceStatus(ctx, res.OrderID, models.OrderCancelled)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append/settle error: %v", err)
		}
	}
}

func TestCancelReleasesTable(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 4)

	res, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 4, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := st.AdvanceStatus(ctx, res.OrderID, models.OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var tableStatus string
	row := pool.QueryRow(ctx, `SELECT status FROM tables WHERE table_number = 4`)
	if err := row.Scan(&tableStatus); err != nil {
		t.Fatalf("read table: %v", err)
	}
	if tableStatus != models.TableAvailable {
		t.Fatalf("cancelled order must release table, got %s", tableStatus)
	}
}

func TestDeleteTableWithActiveOrder(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 9)

	if _, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 9, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := st.DeleteTable(ctx, 9); !errors.Is(err, store.ErrTableActiveOrder) {
		t.Fatalf("expected ErrTableActiveOrder, got %v", err)
	}
}

func TestOrderCodeSequence(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	waiter := seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedTable(t, ctx, pool, 1)
	seedTable(t, ctx, pool, 2)

	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	first, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 1, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(), CreatedAt: day,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := st.SubmitOrder(ctx, store.SubmitOrderInput{
		TableNumber: 2, WaiterID: waiter, WaiterName: "Asha", Items: sampleItems(), CreatedAt: day,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Code != "ORD-20260901-001" {
		t.Fatalf("first code = %s", first.Code)
	}
	if second.Code != "ORD-20260901-002" {
		t.Fatalf("second code = %s", second.Code)
	}
}

func TestMenuListsAvailableItemsOnly(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	chai, err := st.CreateMenuItem(ctx, store.CreateMenuItemInput{Name: "Masala Chai", Category: "drinks", Price: 50})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := st.CreateMenuItem(ctx, store.CreateMenuItemInput{Name: "Paneer Tikka", Category: "starters", Price: 350}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := st.CreateMenuItem(ctx, store.CreateMenuItemInput{Name: "Masala Chai", Category: "drinks", Price: 60}); !errors.Is(err, store.ErrDuplicateMenuItem) {
		t.Fatalf("duplicate name should fail, got %v", err)
	}

	if _, err := pool.Exec(ctx, `UPDATE menu_items SET available = FALSE WHERE menu_item_id::text = $1`, chai.MenuItemID); err != nil {
		t.Fatalf("mark unavailable: %v", err)
	}

	items, err := st.ListMenu(ctx)
	if err != nil {
		t.Fatalf("list menu: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Paneer Tikka" {
		t.Fatalf("expected only the available item, got %+v", items)
	}

	if err := st.DeleteMenuItem(ctx, items[0].MenuItemID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if err := st.DeleteMenuItem(ctx, items[0].MenuItemID); !errors.Is(err, store.ErrMenuItemNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestLoginAndSessions(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	user, err := st.CreateUser(ctx, store.CreateUserInput{Name: "Asha", PIN: "4321", Role: models.RoleWaiter})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, _, err := st.Login(ctx, "Asha", "9999"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("wrong pin should fail, got %v", err)
	}
	if _, _, err := st.Login(ctx, "Nobody", "4321"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("unknown user should fail, got %v", err)
	}

	session, got, err := st.Login(ctx, "Asha", "4321")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.UserID != user.UserID {
		t.Fatalf("login returned wrong user")
	}

	fetched, err := st.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if fetched.UserRole != models.RoleWaiter {
		t.Fatalf("session role = %s", fetched.UserRole)
	}

	if err := st.DeleteSession(ctx, session.SessionID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := st.GetSession(ctx, session.SessionID); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListStaffExcludesAdmins(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedUser(t, ctx, pool, "Asha", models.RoleWaiter)
	seedUser(t, ctx, pool, "Bala", models.RoleChef)
	seedUser(t, ctx, pool, "Chitra", models.RoleAdmin)
	seedUser(t, ctx, pool, "Devi", models.RoleSuperAdmin)

	staff, err := st.ListStaff(ctx)
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(staff) != 2 {
		t.Fatalf("expected 2 staff, got %d", len(staff))
	}
	for _, user := range staff {
		if user.Role != models.RoleWaiter && user.Role != models.RoleChef {
			t.Fatalf("unexpected role %s in staff list", user.Role)
		}
	}
}

type submitResult struct {
	res store.SubmitOrderResult
	err error
}

func sampleItems() []models.OrderItem {
	return []models.OrderItem{
		{Name: "Paneer Tikka", UnitPrice: 350, Quantity: 1},
		{Name: "Masala Chai", UnitPrice: 50, Quantity: 2},
	}
}

func seedUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name, role string) string {
	t.Helper()
	userID := uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO users (user_id, name, role, pin_hash) VALUES ($1, $2, $3, 'x')
	`, userID, name, role); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return userID
}

func seedTable(t *testing.T, ctx context.Context, pool *pgxpool.Pool, number int) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		INSERT INTO tables (table_number, name) VALUES ($1, 'Table')
	`, number); err != nil {
		t.Fatalf("insert table: %v", err)
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool)
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
