package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchwell/growth-plane/internal/domain"
)

type memRepo struct {
	persons map[uuid.UUID]*domain.Person
	links   map[uuid.UUID][]domain.IdentityLink
	readErr map[uuid.UUID]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		persons: make(map[uuid.UUID]*domain.Person),
		links:   make(map[uuid.UUID][]domain.IdentityLink),
		readErr: make(map[uuid.UUID]error),
	}
}

func (m *memRepo) GetPerson(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	if err, ok := m.readErr[id]; ok {
		return nil, err
	}
	return m.persons[id], nil
}

func (m *memRepo) GetPersonByEmail(_ context.Context, email string) (*domain.Person, error) {
	for _, p := range m.persons {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreatePerson(_ context.Context, p *domain.Person) error {
	m.persons[p.ID] = p
	return nil
}

func (m *memRepo) UpdatePerson(_ context.Context, p *domain.Person) error {
	m.persons[p.ID] = p
	return nil
}

func (m *memRepo) GetLink(_ context.Context, _ domain.IdentityProvider, _ string) (*domain.IdentityLink, error) {
	return nil, nil
}

func (m *memRepo) CreateLink(_ context.Context, l *domain.IdentityLink) error {
	m.links[l.PersonID] = append(m.links[l.PersonID], *l)
	return nil
}

func (m *memRepo) ListLinks(_ context.Context, personID uuid.UUID) ([]domain.IdentityLink, error) {
	return m.links[personID], nil
}

func (m *memRepo) ListPersonIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(m.persons))
	for id := range m.persons {
		ids = append(ids, id)
	}
	for id := range m.readErr {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestSnapshotWritesGzippedNDJSON(t *testing.T) {
	repo := newMemRepo()
	p := &domain.Person{ID: uuid.New(), Email: "ana@example.com", Name: "Ana"}
	require.NoError(t, repo.CreatePerson(context.Background(), p))
	require.NoError(t, repo.CreateLink(context.Background(), &domain.IdentityLink{
		PersonID: p.ID, Provider: domain.ProviderApp, ExternalID: "user-77",
	}))

	s3fake := &fakeS3{}
	exp := NewExporterWithAPI(s3fake, repo, "growth-exports", "snapshots/")

	result, err := exp.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persons)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, strings.HasPrefix(result.Key, "snapshots/persons/"))
	assert.True(t, strings.HasSuffix(result.Key, ".ndjson.gz"))

	require.Len(t, s3fake.inputs, 1)
	assert.Equal(t, "growth-exports", *s3fake.inputs[0].Bucket)
	assert.Equal(t, "gzip", *s3fake.inputs[0].ContentEncoding)

	gz, err := gzip.NewReader(bytes.NewReader(s3fake.bodies[0]))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	var rec snapshotRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, p.ID, rec.Person.ID)
	require.Len(t, rec.Links, 1)
	assert.Equal(t, "user-77", rec.Links[0].ExternalID)
}

func TestSnapshotSkipsFailedPersons(t *testing.T) {
	repo := newMemRepo()
	ok := &domain.Person{ID: uuid.New(), Email: "ok@example.com"}
	require.NoError(t, repo.CreatePerson(context.Background(), ok))
	repo.readErr[uuid.New()] = errors.New("row corrupt")

	s3fake := &fakeS3{}
	exp := NewExporterWithAPI(s3fake, repo, "growth-exports", "")

	result, err := exp.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persons)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, s3fake.inputs, 1)
}
