package pipelines

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/storage"
)

// fakeActions is an in-memory pipeline.Actions.
type fakeActions struct {
	mu       sync.Mutex
	messages []model.Message
	removed  []string
	store    *datastore.Store
	current  string
	nextID   int
}

func newFakeActions() *fakeActions {
	return &fakeActions{store: datastore.New()}
}

func (f *fakeActions) AddMessage(msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeActions) UpdateMessage(msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == msg.ID {
			f.messages[i] = msg
		}
	}
}

func (f *fakeActions) RemoveMessage(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return
		}
	}
}

func (f *fakeActions) NextMessageID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("m%d", f.nextID)
}

func (f *fakeActions) FetchedData(id string) (datastore.Record, bool) { return f.store.Get(id) }

func (f *fakeActions) SetFetchedData(rec datastore.Record) datastore.Record {
	return f.store.Upsert(rec)
}

func (f *fakeActions) FetchedDataList() []datastore.Record { return f.store.List() }

func (f *fakeActions) FetchedDataListPreview(maxRows int) []datastore.Preview {
	return f.store.ListPreview(maxRows)
}

func (f *fakeActions) CurrentDataset() string { return f.current }
func (f *fakeActions) SetCurrentDataset(id string) { f.current = id }

var _ pipeline.Actions = (*fakeActions)(nil)

const regionsCSV = `region,quarter,revenue,units
EMEA,Q1,120.5,10
APAC,Q1,80,7
AMER,Q1,200.25,12
EMEA,Q2,95,4
APAC,Q2,60,3
`

func newDatasets(t *testing.T) *storage.DatasetStore {
	t.Helper()
	ds, err := storage.NewDatasetStore(t.TempDir(), "datasets.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	_, err = ds.ImportCSV(context.Background(), "sales", strings.NewReader(regionsCSV))
	require.NoError(t, err)
	return ds
}

func testConfig(m model.Provider) *pipeline.AgentConfig {
	return &pipeline.AgentConfig{
		Model:                 m,
		MaxRowsExposedToModel: 2,
		Fetch:                 pipeline.FetchDefaults{DefaultLimit: 2, PageSize: 2},
	}
}

// salesRecord stores a fixed record and makes it current.
func salesRecord(actions *fakeActions) datastore.Record {
	rec := actions.SetFetchedData(datastore.Record{
		Columns: []datastore.Column{
			{Name: "region", Type: storage.TypeString},
			{Name: "revenue", Type: storage.TypeNumber},
			{Name: "units", Type: storage.TypeInteger},
		},
		Rows: [][]any{
			{"EMEA", 120.5, int64(10)},
			{"APAC", 80.0, int64(7)},
			{"AMER", 200.25, nil},
			{"EMEA", 95.0, int64(4)},
		},
		Source:         datastore.Source{Type: datastore.SourceSQLite, Dataset: "sales", Query: "SELECT region, revenue, units FROM sales"},
		TotalAvailable: 5,
	})
	actions.SetCurrentDataset(rec.ID)
	return rec
}
