package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FileTreesCollection holds one document per (uid, projectId).
const FileTreesCollection = "fileTrees"

// maxContentRetries bounds optimistic retries of SaveFileContent when another
// writer replaces the document between read and write.
const maxContentRetries = 3

// mongoProject is the stored document. The tree is kept as a nested BSON
// document converted from its canonical JSON.
type mongoProject struct {
	UID         string    `bson:"uid"`
	ProjectID   string    `bson:"projectId"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	FileTree    bson.Raw  `bson:"fileTree,omitempty"`
}

// MongoStore keeps project documents in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ remote.Store = (*MongoStore)(nil)

// OpenMongo connects to uri and uses the fileTrees collection of database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(database).Collection(FileTreesCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "projectId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   coll,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func key(uid, projectID string) bson.M {
	return bson.M{"uid": uid, "projectId": projectID}
}

func treeToBSON(root *tree.Node) (bson.Raw, error) {
	b, err := tree.Encode(root)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, fmt.Errorf("convert tree: %w", err)
	}
	return bson.Marshal(doc)
}

func treeFromBSON(raw bson.Raw) (*tree.Node, error) {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert tree: %w", err)
	}
	return tree.Decode(b)
}

func (s *MongoStore) load(ctx context.Context, uid, projectID string) (*mongoProject, error) {
	var doc mongoProject
	err := s.coll.FindOne(ctx, key(uid, projectID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find project", err)
	}
	return &doc, nil
}

func (s *MongoStore) FetchTree(ctx context.Context, uid, projectID string) (*tree.Node, error) {
	doc, err := s.load(ctx, uid, projectID)
	if err != nil {
		return nil, err
	}
	root, err := treeFromBSON(doc.FileTree)
	if err != nil {
		return nil, unavailable("decode tree", err)
	}
	return root, nil
}

func (s *MongoStore) SaveTree(ctx context.Context, uid, projectID string, root *tree.Node) error {
	if err := tree.CheckStructure(root); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	raw, err := treeToBSON(root)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	res, err := s.coll.UpdateOne(ctx, key(uid, projectID),
		bson.M{"$set": bson.M{"fileTree": raw, "updatedAt": s.now()}})
	if err != nil {
		return unavailable("save tree", err)
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// SaveFileContent applies the edit to the stored tree and replaces the
// document only if nobody else replaced it since it was read.
func (s *MongoStore) SaveFileContent(ctx context.Context, uid, projectID, fileID, content, language string) error {
	for attempt := 0; attempt < maxContentRetries; attempt++ {
		doc, err := s.load(ctx, uid, projectID)
		if err != nil {
			return err
		}
		root, err := treeFromBSON(doc.FileTree)
		if err != nil {
			return unavailable("decode tree", err)
		}
		root, err = tree.UpdateFileContent(root, fileID, content, language)
		switch {
		case errors.Is(err, tree.ErrNotFound):
			return fmt.Errorf("%w: file %s", remote.ErrNotFound, fileID)
		case err != nil:
			return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
		}
		raw, err := treeToBSON(root)
		if err != nil {
			return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
		}
		filter := key(uid, projectID)
		filter["updatedAt"] = doc.UpdatedAt
		res, err := s.coll.UpdateOne(ctx, filter,
			bson.M{"$set": bson.M{"fileTree": raw, "updatedAt": s.now()}})
		if err != nil {
			return unavailable("save file", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return unavailable("save file", errors.New("document changed concurrently"))
}

func (s *MongoStore) CreateProject(ctx context.Context, uid, name, description string) (*api.Project, error) {
	if uid == "" || name == "" {
		return nil, fmt.Errorf("%w: uid and name are required", remote.ErrInvalid)
	}
	ts := s.now()
	p := &api.Project{
		UID:         uid,
		ProjectID:   uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		FileTree:    tree.Welcome("welcome"),
	}
	raw, err := treeToBSON(p.FileTree)
	if err != nil {
		return nil, err
	}
	_, err = s.coll.InsertOne(ctx, mongoProject{
		UID:         p.UID,
		ProjectID:   p.ProjectID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		FileTree:    raw,
	})
	if err != nil {
		return nil, unavailable("create project", err)
	}
	return p, nil
}

func (s *MongoStore) GetProject(ctx context.Context, uid, projectID string) (*api.Project, error) {
	doc, err := s.load(ctx, uid, projectID)
	if err != nil {
		return nil, err
	}
	p := toProject(doc)
	if p.FileTree, err = treeFromBSON(doc.FileTree); err != nil {
		return nil, unavailable("decode tree", err)
	}
	return &p, nil
}

func (s *MongoStore) ListProjects(ctx context.Context, uid string) ([]api.Project, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetProjection(bson.M{"fileTree": 0})
	cur, err := s.coll.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, unavailable("list projects", err)
	}
	var docs []mongoProject
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable("list projects", err)
	}
	out := make([]api.Project, 0, len(docs))
	for i := range docs {
		out = append(out, toProject(&docs[i]))
	}
	return out, nil
}

func (s *MongoStore) UpdateProject(ctx context.Context, uid, projectID, name, description string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", remote.ErrInvalid)
	}
	res, err := s.coll.UpdateOne(ctx, key(uid, projectID), bson.M{"$set": bson.M{
		"name":        name,
		"description": description,
		"updatedAt":   s.now(),
	}})
	if err != nil {
		return unavailable("update project", err)
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteProject(ctx context.Context, uid, projectID string) error {
	res, err := s.coll.DeleteOne(ctx, key(uid, projectID))
	if err != nil {
		return unavailable("delete project", err)
	}
	if res.DeletedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func toProject(doc *mongoProject) api.Project {
	return api.Project{
		UID:         doc.UID,
		ProjectID:   doc.ProjectID,
		Name:        doc.Name,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
}
