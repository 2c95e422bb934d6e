package checkoutdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/catalog"
	"github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/checkout"
	checkoutdb "github.com/EsraaMosaad/Serverless-E-Commerce-Backend-Platform-AWS/internal/db/checkout"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

type mapLookup map[string]catalog.Product

func (m mapLookup) Get(ctx context.Context, productID string) (catalog.Product, error) {
	p, ok := m[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type stubGateway struct{ result checkout.PaymentResult }

func (g *stubGateway) Charge(ctx context.Context, orderID, userID string, amount float64) (checkout.PaymentResult, error) {
	return g.result, nil
}

func (g *stubGateway) Refund(ctx context.Context, transactionID string, amount float64) (checkout.RefundResult, error) {
	return checkout.RefundResult{}, nil
}

// Processing an order through a Postgres-backed saga log must create the saga
// row first and then record every step and the terminal status; nothing may be
// silently dropped.
func TestOrchestrator_PersistsSagaThroughStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	mock.ExpectExec("INSERT INTO order_sagas").
		WithArgs("order-1", "order-1", "user-1", 50.0, "started").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT order_id, user_id, amount, status").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "user_id", "amount", "status"}).
			AddRow("order-1", "user-1", 50.0, "started"))
	mock.ExpectExec("INSERT INTO order_saga_steps").
		WithArgs("order-1", "validate", "started", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO order_saga_steps").
		WithArgs("order-1", "validate", "succeeded", "").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO order_saga_steps").
		WithArgs("order-1", "charge", "started", "").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO order_saga_steps").
		WithArgs("order-1", "charge", "succeeded", "txn-abc123").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectExec("UPDATE order_sagas").
		WithArgs("order-1", "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	price := 25.0
	total := 50.0
	env := checkout.Envelope{
		OrderID:     "order-1",
		UserID:      "user-1",
		Items:       []checkout.Item{{ProductID: "p2", Quantity: 2, Price: &price}},
		TotalAmount: &total,
	}

	lookup := mapLookup{"p2": {ProductID: "p2", Price: 25, Stock: catalog.IntPtr(50)}}
	gateway := &stubGateway{result: checkout.PaymentResult{
		Status:        checkout.PaymentStatusSucceeded,
		TransactionID: "txn-abc123",
		Amount:        50,
		Currency:      "USD",
		ProcessedAt:   time.Now().UTC(),
	}}

	// Any saga write failure surfaces through logf; fail the test on it.
	orch := checkout.NewOrchestrator(
		checkout.NewValidator(lookup),
		gateway,
		checkoutdb.NewSagaStore(db),
		func(format string, args ...any) { t.Errorf(format, args...) },
	)

	out, err := orch.Process(context.Background(), env)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.State() != checkout.StatePaid {
		t.Fatalf("state = %s", out.State())
	}
}
