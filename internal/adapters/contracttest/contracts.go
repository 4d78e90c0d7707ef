package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	idempotencyport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
	settingsport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
)

type CleanupFunc = func()

type (
	SettingsStoreFactory func(t *testing.T) (settingsport.Store, CleanupFunc)
	IdemStoreFactory     func(t *testing.T) (idempotencyport.Store, CleanupFunc)
	ValueRepoFactory     func(t *testing.T) (profilefields.ValueRepository, CleanupFunc)
)

// RunSettingsStore exercises the settings.Store contract. Keys are namespaced per run so the
// suite can share a database or Redis instance with other runs.
func RunSettingsStore(t *testing.T, newStore SettingsStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	ns := "ct_" + uuid.NewString() + "_"
	key := ns + "12_types"

	if _, err := store.Get(ctx, key); !errors.Is(err, settingsport.ErrNotFound) {
		t.Fatalf("Get missing: err=%v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, key, []byte(`["alumni","staff"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `["alumni","staff"]` {
		t.Fatalf("Get=%s", got)
	}

	// Last write wins.
	if err := store.Set(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = store.Get(ctx, key)
	if err != nil || string(got) != `[]` {
		t.Fatalf("expected overwritten value, got %q err=%v", string(got), err)
	}

	// An empty value is a stored value, not a missing one.
	emptyKey := ns + "empty"
	if err := store.Set(ctx, emptyKey, []byte{}); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if _, err := store.Get(ctx, emptyKey); err != nil {
		t.Fatalf("Get empty: err=%v, want stored", err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, settingsport.ErrNotFound) {
		t.Fatalf("Get after delete: err=%v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	_ = store.Delete(ctx, emptyKey)

	// Concurrent writers to distinct keys must not interfere.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := ns + "c_" + string(rune('a'+i))
			if err := store.Set(ctx, k, []byte{byte('0' + i)}); err != nil {
				t.Errorf("Set %s: %v", k, err)
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		k := ns + "c_" + string(rune('a'+i))
		v, err := store.Get(ctx, k)
		if err != nil || len(v) != 1 || v[0] != byte('0'+i) {
			t.Fatalf("Get %s=%q err=%v", k, v, err)
		}
		_ = store.Delete(ctx, k)
	}
}

// RunIdempotencyStore exercises the idempotency.Store contract. Stores with a retention window
// must keep records created "now" for at least the duration of the suite.
func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  "admin-1",
		Method:   "PUT",
		Route:    "/admin/fields/{fieldId}/requirement",
		BodyHash: "hash-abc",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"fieldId":12}`),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"fieldId":12}` || got.ContentType != "application/json" || got.StatusCode != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Every fingerprint member takes part in the lookup.
	other := fp
	other.BodyHash = "hash-def"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other body: ok=%v err=%v", ok, err)
	}
	other = fp
	other.Subject = "admin-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other subject: ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"fieldId":13}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"fieldId":13}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

// RunValueRepository exercises the profilefields.ValueRepository contract.
func RunValueRepository(t *testing.T, newRepo ValueRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	user := profilefields.UserID("ct-" + uuid.NewString())
	other := profilefields.UserID("ct-" + uuid.NewString())

	if _, ok, err := repo.FieldValue(ctx, user, 5); err != nil || ok {
		t.Fatalf("FieldValue missing: ok=%v err=%v", ok, err)
	}
	if err := repo.SetFieldValue(ctx, user, 5, "Staff"); err != nil {
		t.Fatalf("SetFieldValue: %v", err)
	}
	v, ok, err := repo.FieldValue(ctx, user, 5)
	if err != nil || !ok || v != "Staff" {
		t.Fatalf("FieldValue=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := repo.FieldValue(ctx, other, 5); ok {
		t.Fatalf("value leaked across users")
	}
	if _, ok, _ := repo.FieldValue(ctx, user, 12); ok {
		t.Fatalf("value leaked across fields")
	}

	if err := repo.SetFieldValue(ctx, user, 5, "alumni"); err != nil {
		t.Fatalf("SetFieldValue overwrite: %v", err)
	}
	if v, _, _ := repo.FieldValue(ctx, user, 5); v != "alumni" {
		t.Fatalf("FieldValue after overwrite=%q", v)
	}

	if err := repo.SetFieldValue(ctx, user, 5, ""); err != nil {
		t.Fatalf("SetFieldValue empty: %v", err)
	}
	if _, ok, err := repo.FieldValue(ctx, user, 5); err != nil || ok {
		t.Fatalf("FieldValue after removal: ok=%v err=%v", ok, err)
	}
	if err := repo.SetFieldValue(ctx, user, 5, ""); err != nil {
		t.Fatalf("removing a missing value: %v", err)
	}
}
