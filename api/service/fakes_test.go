package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"videotasks/api/kafka"
	"videotasks/api/repository"
	"videotasks/events"
	"videotasks/models"
)

type memRepo struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	tasks  map[int64]*models.Task
	videos map[int64]*models.Video
	nextID int64

	createTaskErr error
	markCalls     int
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:  make(map[int64]*models.User),
		tasks:  make(map[int64]*models.Task),
		videos: make(map[int64]*models.Video),
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) addUser(username, email, hash string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: m.id(), Username: username, Email: email, Password: hash, IsActive: true}
	m.users[u.ID] = u
	return u
}

func (m *memRepo) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	user.ID = m.id()
	user.IsActive = true
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memRepo) UserExists(ctx context.Context, username, email string) (bool, error) {
	_, err := m.find(func(u *models.User) bool { return u.Username == username || u.Email == email })
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memRepo) CreateTaskWithVideo(ctx context.Context, task *models.Task, video *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTaskErr != nil {
		return m.createTaskErr
	}
	now := time.Now()
	video.ID = m.id()
	video.IsActive = true
	video.CreatedAt, video.UpdatedAt = now, now
	v := *video
	m.videos[video.ID] = &v

	task.ID = m.id()
	task.OriginalVideoID = video.ID
	task.Status = models.StatusPending
	task.IsActive = true
	task.CreatedAt, task.UpdatedAt = now, now
	t := *task
	m.tasks[task.ID] = &t
	return nil
}

func (m *memRepo) load(t *models.Task) *models.Task {
	cp := *t
	if v, ok := m.videos[t.OriginalVideoID]; ok {
		vc := *v
		cp.OriginalVideo = &vc
	}
	if t.ProcessedVideoID != nil {
		if v, ok := m.videos[*t.ProcessedVideoID]; ok {
			vc := *v
			cp.ProcessedVideo = &vc
		}
	}
	return &cp
}

func (m *memRepo) GetTask(ctx context.Context, ownerID, id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != ownerID || !t.IsActive {
		return nil, repository.ErrTaskNotFound
	}
	return m.load(t), nil
}

func (m *memRepo) GetTaskByTaskID(ctx context.Context, taskID string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.TaskID == taskID && t.IsActive {
			return m.load(t), nil
		}
	}
	return nil, repository.ErrTaskNotFound
}

func (m *memRepo) ListTasks(ctx context.Context, ownerID int64, limit int, desc bool) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.UserID == ownerID && t.IsActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) MarkUploaded(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	t, ok := m.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	if t.Status != models.StatusPending {
		return repository.ErrTransitionRejected
	}
	t.Status = models.StatusUploaded
	return nil
}

func (m *memRepo) DeactivateTask(ctx context.Context, id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || !t.IsActive {
		return nil, repository.ErrTaskNotFound
	}
	if t.Status != models.StatusProcessed {
		return nil, repository.ErrTransitionRejected
	}
	t.IsActive = false
	cp := *t
	return &cp, nil
}

func (m *memRepo) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || !v.IsActive {
		return nil, repository.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memRepo) ListProcessedVideos(ctx context.Context, limit int, desc bool) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Video
	for _, t := range m.tasks {
		if !t.IsActive || t.Status != models.StatusProcessed || t.ProcessedVideoID == nil {
			continue
		}
		if v, ok := m.videos[*t.ProcessedVideoID]; ok {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// finish simulates the worker completing a task with a derived video.
func (m *memRepo) finish(taskID int64, key string) *models.Video {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	v := &models.Video{ID: m.id(), UserID: t.UserID, Title: "processed", Filename: "processed_clip.mp4", StorageKey: key, IsActive: true}
	m.videos[v.ID] = v
	t.ProcessedVideoID = &v.ID
	t.Status = models.StatusProcessed
	return v
}

func (m *memRepo) status(id int64) models.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

func (m *memRepo) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []events.Event
	err       error
	// statusAtPublish records the task status observed when Publish ran.
	statusAtPublish []models.TaskStatus
	repo            *memRepo
}

func (p *fakePublisher) Publish(ctx context.Context, ev events.Event) (kafka.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pv, ok := ev.(events.ProcessVideo); ok && p.repo != nil {
		p.statusAtPublish = append(p.statusAtPublish, p.repo.status(pv.TaskID))
	}
	if p.err != nil {
		return kafka.Receipt{}, &kafka.PublishError{Kind: ev.Kind(), Err: p.err}
	}
	p.published = append(p.published, ev)
	return kafka.Receipt{Topic: "videos", Partition: 0, Offset: int64(len(p.published) - 1)}, nil
}

func (p *fakePublisher) Close() error { return nil }

type memCache struct {
	mu      sync.Mutex
	entries map[[2]int64]models.TaskStatus
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[[2]int64]models.TaskStatus)}
}

func (c *memCache) Get(ctx context.Context, ownerID, taskID int64) (models.TaskStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[[2]int64{ownerID, taskID}]
	if !ok {
		return "", errors.New("miss")
	}
	return s, nil
}

func (c *memCache) Set(ctx context.Context, ownerID, taskID int64, status models.TaskStatus) error {
	if !status.Terminal() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[[2]int64{ownerID, taskID}] = status
	return nil
}

func (c *memCache) Delete(ctx context.Context, ownerID, taskID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, [2]int64{ownerID, taskID})
	return nil
}
