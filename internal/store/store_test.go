package store

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", WithVectorDim(8))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBankCRUD(t *testing.T) {
	s := newTestStore(t)

	b := &Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}
	if err := s.UpsertBank(b); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}

	got, err := s.GetBank("bank1")
	if err != nil {
		t.Fatalf("GetBank failed: %v", err)
	}
	if got == nil || got.Name != "default" {
		t.Fatalf("GetBank mismatch: %+v", got)
	}

	byName, err := s.GetBankByName("default")
	if err != nil {
		t.Fatalf("GetBankByName failed: %v", err)
	}
	if byName == nil || byName.ID != "bank1" {
		t.Fatalf("GetBankByName mismatch: %+v", byName)
	}

	missing, err := s.GetBank("nope")
	if err != nil {
		t.Fatalf("GetBank(missing) errored: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing bank, got %+v", missing)
	}
}

func TestMemoryUnitCRUDAndAccessWriteThrough(t *testing.T) {
	s := newTestStore(t)
	bank := &Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}
	if err := s.UpsertBank(bank); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}

	m := &MemoryUnit{
		ID:               "mem1",
		BankID:           "bank1",
		Content:          "the user prefers dark mode",
		FactType:         FactObservation,
		Confidence:       0.9,
		CreatedAt:        100,
		UpdatedAt:        100,
		EncodingStrength: 1.0,
		Tags:             []string{"preferences", "ui"},
	}
	if err := s.InsertMemoryUnit(m); err != nil {
		t.Fatalf("InsertMemoryUnit failed: %v", err)
	}

	got, err := s.GetMemoryUnit("mem1")
	if err != nil {
		t.Fatalf("GetMemoryUnit failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected memory unit, got nil")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "preferences" {
		t.Errorf("tags not round-tripped: %+v", got.Tags)
	}
	if got.AccessCount != 0 {
		t.Errorf("expected fresh access_count 0, got %d", got.AccessCount)
	}

	if err := s.UpdateAccessMetadata([]string{"mem1"}, 200); err != nil {
		t.Fatalf("UpdateAccessMetadata failed: %v", err)
	}
	got, err = s.GetMemoryUnit("mem1")
	if err != nil {
		t.Fatalf("GetMemoryUnit after access failed: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected access_count 1, got %d", got.AccessCount)
	}
	if got.LastAccessed == nil || *got.LastAccessed != 200 {
		t.Errorf("expected last_accessed 200, got %+v", got.LastAccessed)
	}
	if got.EncodingStrength <= 1.0 {
		t.Errorf("expected encoding_strength to increase, got %f", got.EncodingStrength)
	}

	batch, err := s.GetMemoryUnits([]string{"mem1", "missing"})
	if err != nil {
		t.Fatalf("GetMemoryUnits failed: %v", err)
	}
	if _, ok := batch["mem1"]; !ok {
		t.Errorf("expected mem1 in batch result")
	}
	if _, ok := batch["missing"]; ok {
		t.Errorf("did not expect missing id in batch result")
	}

	if err := s.DeleteMemoryUnit("mem1"); err != nil {
		t.Fatalf("DeleteMemoryUnit failed: %v", err)
	}
	got, err = s.GetMemoryUnit("mem1")
	if err != nil {
		t.Fatalf("GetMemoryUnit after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestMemoryUnitCorruptedTagsTreatedAsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}

	// Insert the row directly with malformed JSON in the tags column,
	// bypassing the marshal helper, to exercise the scan-time fallback.
	_, err := s.db.Exec(`
		INSERT INTO memory_units (id, bank_id, content, fact_type, confidence,
			created_at, updated_at, access_count, encoding_strength, tags)
		VALUES ('mem2', 'bank1', 'broken tags row', 'observation', 1.0, 1, 1, 0, 1.0, '{not valid json')
	`)
	if err != nil {
		t.Fatalf("direct insert failed: %v", err)
	}

	got, err := s.GetMemoryUnit("mem2")
	if err != nil {
		t.Fatalf("GetMemoryUnit should not error on corrupted tags: %v", err)
	}
	if got.Tags != nil {
		t.Errorf("expected nil tags for corrupted JSON, got %+v", got.Tags)
	}
}

func TestEntityLinkingAndSeedResolution(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}
	m := &MemoryUnit{ID: "mem1", BankID: "bank1", Content: "Alice met Bob", FactType: FactExperience, Confidence: 1, CreatedAt: 1, UpdatedAt: 1, EncodingStrength: 1}
	if err := s.InsertMemoryUnit(m); err != nil {
		t.Fatalf("InsertMemoryUnit failed: %v", err)
	}

	alice := &Entity{ID: "ent1", BankID: "bank1", Name: "Alice", CanonicalName: "alice", EntityType: "person"}
	if err := s.UpsertEntity(alice); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := s.LinkMemoryEntity("mem1", "ent1"); err != nil {
		t.Fatalf("LinkMemoryEntity failed: %v", err)
	}

	resolved, err := s.GetEntitiesByName("bank1", []string{"alice", "nobody"})
	if err != nil {
		t.Fatalf("GetEntitiesByName failed: %v", err)
	}
	if len(resolved) != 1 || resolved[0].ID != "ent1" {
		t.Fatalf("expected exactly entity ent1, got %+v", resolved)
	}

	memIDs, err := s.GetMemoriesForEntities([]string{"ent1"})
	if err != nil {
		t.Fatalf("GetMemoriesForEntities failed: %v", err)
	}
	if len(memIDs) != 1 || memIDs[0] != "mem1" {
		t.Fatalf("expected [mem1], got %+v", memIDs)
	}

	byMemory, err := s.GetEntitiesForMemories([]string{"mem1"})
	if err != nil {
		t.Fatalf("GetEntitiesForMemories failed: %v", err)
	}
	if len(byMemory["mem1"]) != 1 || byMemory["mem1"][0].CanonicalName != "alice" {
		t.Fatalf("expected alice linked to mem1, got %+v", byMemory["mem1"])
	}
}

func TestLinkInvariants(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "b1", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}
	if err := s.UpsertBank(&Bank{ID: "bank2", Name: "b2", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}

	selfLink := &MemoryLink{ID: "l1", BankID: "bank1", SourceID: "mem1", TargetID: "mem1", LinkType: LinkSemantic, Weight: 1, CreatedAt: 1}
	if err := s.InsertLink(selfLink, "bank1", "bank1"); err != ErrSelfLink {
		t.Fatalf("expected ErrSelfLink, got %v", err)
	}

	crossLink := &MemoryLink{ID: "l2", BankID: "bank1", SourceID: "mem1", TargetID: "mem2", LinkType: LinkSemantic, Weight: 1, CreatedAt: 1}
	if err := s.InsertLink(crossLink, "bank1", "bank2"); err != ErrCrossBankLink {
		t.Fatalf("expected ErrCrossBankLink, got %v", err)
	}

	validLink := &MemoryLink{ID: "l3", BankID: "bank1", SourceID: "mem1", TargetID: "mem2", LinkType: LinkCauses, Weight: 0.8, CreatedAt: 1}
	if err := s.InsertLink(validLink, "bank1", "bank1"); err != nil {
		t.Fatalf("InsertLink(valid) failed: %v", err)
	}

	edges, err := s.EdgesFrom(string(LinkCauses), []string{"mem1"}, "forward")
	if err != nil {
		t.Fatalf("EdgesFrom failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "mem2" {
		t.Fatalf("expected one edge mem1->mem2, got %+v", edges)
	}
}

func TestPathCoAccessAndBoostInputs(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "b1", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}

	pa := &Path{ID: "pa", BankID: "bank1", NormalizedPath: "/src/a.go"}
	pb := &Path{ID: "pb", BankID: "bank1", NormalizedPath: "/src/b.go"}
	if err := s.UpsertPath(pa); err != nil {
		t.Fatalf("UpsertPath(pa) failed: %v", err)
	}
	if err := s.UpsertPath(pb); err != nil {
		t.Fatalf("UpsertPath(pb) failed: %v", err)
	}

	if err := s.RecordCoAccess("pa", "pb", 0.3); err != nil {
		t.Fatalf("RecordCoAccess failed: %v", err)
	}
	if err := s.RecordCoAccess("pb", "pa", 0.2); err != nil {
		t.Fatalf("RecordCoAccess (reversed order) failed: %v", err)
	}

	strengths, max, err := s.CoAccessStrength("bank1", "pa")
	if err != nil {
		t.Fatalf("CoAccessStrength failed: %v", err)
	}
	if got := strengths["pb"]; got < 0.49 || got > 0.51 {
		t.Errorf("expected accumulated strength ~0.5, got %f", got)
	}
	if max < 0.49 || max > 0.51 {
		t.Errorf("expected max strength ~0.5, got %f", max)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}
	m := &MemoryUnit{ID: "mem1", BankID: "bank1", Content: "hello", FactType: FactWorld, Confidence: 1, CreatedAt: 1, UpdatedAt: 1, EncodingStrength: 1, Tags: []string{"x"}}
	if err := s.InsertMemoryUnit(m); err != nil {
		t.Fatalf("InsertMemoryUnit failed: %v", err)
	}
	if err := s.UpsertEntity(&Entity{ID: "ent1", BankID: "bank1", Name: "X", CanonicalName: "x", EntityType: "thing"}); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("exported data is empty")
	}

	s2 := newTestStore(t)
	if err := s2.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	restored, err := s2.GetMemoryUnit("mem1")
	if err != nil {
		t.Fatalf("GetMemoryUnit after import failed: %v", err)
	}
	if restored == nil || restored.Content != "hello" {
		t.Fatalf("memory unit not restored correctly: %+v", restored)
	}

	entities, err := s2.ListEntities("bank1")
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if len(entities) != 1 || entities[0].CanonicalName != "x" {
		t.Fatalf("expected one restored entity, got %+v", entities)
	}
}

func TestDeleteBankCascades(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertBank(&Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("UpsertBank failed: %v", err)
	}
	if err := s.InsertMemoryUnit(&MemoryUnit{ID: "mem1", BankID: "bank1", Content: "c", FactType: FactWorld, Confidence: 1, CreatedAt: 1, UpdatedAt: 1, EncodingStrength: 1}); err != nil {
		t.Fatalf("InsertMemoryUnit failed: %v", err)
	}
	if err := s.UpsertEntity(&Entity{ID: "ent1", BankID: "bank1", Name: "E", CanonicalName: "e"}); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := s.UpsertPath(&Path{ID: "p1", BankID: "bank1", NormalizedPath: "/a"}); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}

	if err := s.DeleteBank("bank1"); err != nil {
		t.Fatalf("DeleteBank failed: %v", err)
	}

	got, err := s.GetBank("bank1")
	if err != nil {
		t.Fatalf("GetBank after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected bank to be gone, got %+v", got)
	}
	entities, err := s.ListEntities("bank1")
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("expected no entities after bank delete, got %+v", entities)
	}
}
