package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"storyweaver/internal/model"
)

var (
	ErrStoryNotFound  = errors.New("story not found")
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrPersist        = errors.New("persist collection")
	ErrInvalidPatch   = errors.New("invalid patch")
)

type EventType string

const (
	EventCreated EventType = "story.created"
	EventUpdated EventType = "story.updated"
	EventDeleted EventType = "story.deleted"
)

// Event 集合变更通知
type Event struct {
	Type    EventType    `json:"type"`
	StoryID string       `json:"storyId"`
	Story   *model.Story `json:"story,omitempty"`
}

// Patch 展示层可编辑的字段，nil 表示不修改
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
}

type Stats struct {
	Stories       int    `json:"stories"`
	PublicStories int    `json:"publicStories"`
	Pages         int    `json:"pages"`
	PendingPages  int    `json:"pendingPages"`
	ActiveStoryID string `json:"activeStoryId,omitempty"`
}

// Library 持有故事集合和当前打开的故事。
// 所有变更在同一把锁内同时作用于集合副本和当前故事副本，
// 每次变更都整体替换被修改的子结构，读取方只会拿到深拷贝。
// 集合变更按 persistMu 串行，保存完成后才通知订阅者。
type Library struct {
	mu      sync.RWMutex
	stories []model.Story
	active  *model.Story

	persist   CollectionStore
	persistMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64

	log logrus.FieldLogger
}

func NewLibrary(persist CollectionStore, log logrus.FieldLogger) *Library {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Library{
		persist: persist,
		subs:    make(map[uint64]chan Event),
		log:     log,
	}
}

// Load 从持久化存储加载集合
func (l *Library) Load(ctx context.Context) error {
	if l.persist == nil {
		return nil
	}
	stories, err := l.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	l.persistMu.Lock()
	l.mu.Lock()
	l.stories = cloneAll(stories)
	l.active = nil
	l.mu.Unlock()
	l.persistMu.Unlock()
	l.log.WithField("stories", len(stories)).Info("collection loaded")
	return nil
}

// Insert 将新故事插入集合最前面并设为当前故事。
// 保存失败时故事仍留在内存中，返回 ErrPersist
func (l *Library) Insert(ctx context.Context, story model.Story) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	if l.indexOf(story.ID) >= 0 {
		l.mu.Unlock()
		return fmt.Errorf("story %s already exists", story.ID)
	}
	stored := story.Clone()
	l.stories = append([]model.Story{stored}, l.stories...)
	active := story.Clone()
	l.active = &active
	l.mu.Unlock()

	err := l.saveLocked(ctx)
	l.publish(Event{Type: EventCreated, StoryID: story.ID, Story: &story})
	return err
}

// ProjectCover 设置封面
func (l *Library) ProjectCover(ctx context.Context, id, imageURL string) (model.Story, error) {
	return l.update(ctx, id, func(s *model.Story) error {
		s.CoverImage = imageURL
		return nil
	})
}

// ProjectPage 设置某一页（0起始）的插画并结束其加载状态
func (l *Library) ProjectPage(ctx context.Context, id string, index int, imageURL string) (model.Story, error) {
	if strings.TrimSpace(imageURL) == "" {
		return model.Story{}, errors.New("empty image url")
	}
	return l.update(ctx, id, func(s *model.Story) error {
		if index < 0 || index >= len(s.Pages) {
			return fmt.Errorf("%w: %d", ErrPageOutOfRange, index)
		}
		s.Pages[index].ImageURL = imageURL
		s.Pages[index].IsLoadingImage = false
		return nil
	})
}

// Edit 修改标题、简介和公开状态，页面内容不受影响
func (l *Library) Edit(ctx context.Context, id string, patch Patch) (model.Story, error) {
	return l.update(ctx, id, func(s *model.Story) error {
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return fmt.Errorf("%w: title must not be empty", ErrInvalidPatch)
			}
			s.Title = title
		}
		if patch.Description != nil {
			s.Description = *patch.Description
		}
		if patch.IsPublic != nil {
			s.IsPublic = *patch.IsPublic
		}
		return nil
	})
}

// Delete 删除故事，若为当前故事则一并关闭
func (l *Library) Delete(ctx context.Context, id string) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	idx := l.indexOf(id)
	if idx < 0 {
		l.mu.Unlock()
		return ErrStoryNotFound
	}
	l.stories = append(l.stories[:idx:idx], l.stories[idx+1:]...)
	if l.active != nil && l.active.ID == id {
		l.active = nil
	}
	l.mu.Unlock()

	err := l.saveLocked(ctx)
	l.publish(Event{Type: EventDeleted, StoryID: id})
	return err
}

// Open 将集合中的故事设为当前故事
func (l *Library) Open(id string) (model.Story, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return model.Story{}, ErrStoryNotFound
	}
	active := l.stories[idx].Clone()
	l.active = &active
	return active.Clone(), nil
}

// Close 返回故事库，不再有当前故事
func (l *Library) Close() {
	l.mu.Lock()
	l.active = nil
	l.mu.Unlock()
}

func (l *Library) Get(id string) (model.Story, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return model.Story{}, ErrStoryNotFound
	}
	return l.stories[idx].Clone(), nil
}

// List 按从前到后的顺序返回集合快照
func (l *Library) List() []model.Story {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAll(l.stories)
}

func (l *Library) Active() (model.Story, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.active == nil {
		return model.Story{}, false
	}
	return l.active.Clone(), true
}

func (l *Library) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := Stats{Stories: len(l.stories)}
	for _, s := range l.stories {
		if s.IsPublic {
			st.PublicStories++
		}
		st.Pages += len(s.Pages)
		st.PendingPages += s.Pending()
	}
	if l.active != nil {
		st.ActiveStoryID = l.active.ID
	}
	return st
}

// Subscribe 订阅变更事件，缓冲区满时事件会被丢弃
func (l *Library) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subsMu.Lock()
			delete(l.subs, id)
			l.subsMu.Unlock()
			close(ch)
		})
	}
}

// update 在持有 persistMu 时修改并保存，保存失败则恢复修改前的故事，
// 内存视图不会领先于存储
func (l *Library) update(ctx context.Context, id string, mutate func(s *model.Story) error) (model.Story, error) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	idx := l.indexOf(id)
	if idx < 0 {
		l.mu.Unlock()
		return model.Story{}, ErrStoryNotFound
	}
	prev := l.stories[idx]
	next := prev.Clone()
	if err := mutate(&next); err != nil {
		l.mu.Unlock()
		return model.Story{}, err
	}
	l.replace(idx, next)
	out := next.Clone()
	l.mu.Unlock()

	if err := l.saveLocked(ctx); err != nil {
		l.mu.Lock()
		// 集合的其它变更都需要 persistMu，下标仍然有效
		l.replace(idx, prev)
		l.mu.Unlock()
		return model.Story{}, err
	}
	l.publish(Event{Type: EventUpdated, StoryID: id, Story: &out})
	return out, nil
}

// replace 替换集合中的故事，若为当前故事则同步更新。调用方持有 mu
func (l *Library) replace(idx int, s model.Story) {
	l.stories[idx] = s
	if l.active != nil && l.active.ID == s.ID {
		active := s.Clone()
		l.active = &active
	}
}

func (l *Library) indexOf(id string) int {
	for i := range l.stories {
		if l.stories[i].ID == id {
			return i
		}
	}
	return -1
}

// saveLocked 保存最新快照，调用方持有 persistMu
func (l *Library) saveLocked(ctx context.Context) error {
	if l.persist == nil {
		return nil
	}
	if err := l.persist.Save(ctx, l.List()); err != nil {
		l.log.WithError(err).Error("failed to persist collection")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (l *Library) publish(ev Event) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		out := ev
		if ev.Story != nil {
			s := ev.Story.Clone()
			out.Story = &s
		}
		select {
		case ch <- out:
		default:
			l.log.WithField("story_id", ev.StoryID).Debug("subscriber lagging, event dropped")
		}
	}
}
