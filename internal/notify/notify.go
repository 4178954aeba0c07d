package notify

import (
	"sync"

	"go.uber.org/zap"

	"anondrop/backend/internal/domain"
)

// Notifier 负责把收件箱中的投递送达属主侧的通道。
//
// 系统只做拉取模型：Deliver 仅在属主主动查看时被调用，
// 投递入库本身不触发任何推送。
type Notifier interface {
	Deliver(ownerID int64, deposit *domain.Deposit, payload []byte) error
}

// LogNotifier 把投递内容写入结构化日志的送达实现，开发与排障用。
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志送达器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver 记录一次送达
func (n *LogNotifier) Deliver(ownerID int64, deposit *domain.Deposit, payload []byte) error {
	fields := []zap.Field{
		zap.Int64("owner_id", ownerID),
		zap.Int64("deposit_id", deposit.ID),
		zap.String("token_id", deposit.TokenID),
		zap.String("sender", deposit.SenderAnonID),
	}
	if deposit.HasFile() {
		fields = append(fields,
			zap.String("file_name", deposit.FileName),
			zap.String("file_category", string(deposit.FileCategory)),
			zap.String("file_size", domain.FormatFileSize(deposit.FileSize)),
			zap.Int("payload_bytes", len(payload)),
		)
	}
	n.logger.Info("deposit delivered", fields...)
	return nil
}

// Delivery 一次送达的记录（测试用）。
type Delivery struct {
	OwnerID int64
	Deposit *domain.Deposit
	Payload []byte
}

// Recorder 记录全部送达调用的测试替身。
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecorder 创建送达记录器
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Deliver 记录送达
func (r *Recorder) Deliver(ownerID int64, deposit *domain.Deposit, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{
		OwnerID: ownerID,
		Deposit: deposit,
		Payload: payload,
	})
	return nil
}

// Deliveries 返回已记录的送达快照
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}
