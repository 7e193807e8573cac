package bridge

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/observability/alerting"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/pkg/logger"
)

// Observer 在回执进入终态或失败时收到通知，用于指标统计。
type Observer interface {
	ReceiptSettled(receipt *Receipt, status Status)
}

// Processor 从队列消费回执并交给提交器。
type Processor struct {
	submitter   Submitter
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	observer    Observer
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// WithObserver 配置回执结果回调。
func WithObserver(observer Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(submitter Submitter, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		submitter:   submitter,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动消费循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置回执消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.Handle)
}

// Handle 处理单个回执，可直接用于同步提交。
func (p *Processor) Handle(ctx context.Context, receiptID string) error {
	if p.store == nil || p.submitter == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	receipt, err := p.store.Claim(ctx, receiptID)
	if err != nil {
		if stdErrors.Is(err, ErrReceiptNotFound) || stdErrors.Is(err, ErrReceiptSettled) ||
			stdErrors.Is(err, ErrReceiptExhausted) || stdErrors.Is(err, ErrReceiptConflict) {
			p.logDebug("跳过回执", slog.String("receipt_id", receiptID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取回执失败", slog.Any("error", err), slog.String("receipt_id", receiptID))
		p.emitAlert(ctx, &Receipt{ID: receiptID}, xerrors.CodeOf(err), err, "claim")
		return err
	}

	hash, err := digest.ParseHex(receipt.PayloadHash)
	if err != nil {
		return p.handleFailure(ctx, receipt, xerrors.Wrap(xerrors.CodeInvalidHashLength, err, "回执摘要无法解码", xerrors.WithRetryable(false)))
	}

	conf, err := p.submitter.Submit(ctx, Request{
		ReceiptID:   receipt.ID,
		AnchorType:  receipt.AnchorType,
		Hash:        hash,
		PayloadHash: receipt.PayloadHash,
	})
	if stdErrors.Is(err, registry.ErrAlreadyAnchored) {
		conf, err = Confirmation{Status: StatusConfirmed, OnChainHash: hash.Hex()}, nil
	}
	if err != nil {
		return p.handleFailure(ctx, receipt, err)
	}
	if conf.Status == "" {
		conf.Status = StatusConfirmed
	}

	if err := p.store.MarkConfirmed(ctx, receipt.ID, conf); err != nil {
		logger.L().Error("记录提交结果失败", slog.Any("error", err), slog.String("receipt_id", receipt.ID))
		return p.handleFailure(ctx, receipt, xerrors.Wrap(xerrors.CodeStorageFailure, err, "记录提交结果失败"))
	}
	logger.Audit().Info("锚定已确认",
		slog.String("receipt_id", receipt.ID),
		slog.String("submitter", p.submitter.Name()),
		slog.String("anchor_type", receipt.AnchorType.String()),
		slog.String("payload_hash", receipt.PayloadHash),
		slog.String("status", string(conf.Status)),
		slog.String("tx_ref", conf.TxRef),
		slog.Uint64("block_height", conf.BlockHeight),
	)
	p.observe(receipt, conf.Status)
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, receipt *Receipt, cause error) error {
	code := xerrors.CodeOf(cause)
	if code == xerrors.CodeUnknown {
		code = CodeBridgeSubmit
	}
	retryable := xerrors.RetryableError(cause)
	terminal := receipt.Attempts >= receipt.MaxAttempts || !retryable

	if err := p.store.MarkFailed(ctx, receipt.ID, code, cause.Error(), terminal); err != nil {
		logger.L().Error("标记回执失败状态出错", slog.Any("error", err), slog.String("receipt_id", receipt.ID))
		return err
	}
	logger.Audit().Warn("锚定提交失败",
		slog.String("receipt_id", receipt.ID),
		slog.String("submitter", p.submitter.Name()),
		slog.String("payload_hash", receipt.PayloadHash),
		slog.Bool("terminal", terminal),
		slog.String("error", cause.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", receipt.Attempts),
		slog.Int("max_attempts", receipt.MaxAttempts),
	)

	if terminal {
		stage := "terminal"
		if !retryable {
			stage = "non_retryable"
		}
		p.emitAlert(ctx, receipt, code, cause, stage)
		p.observe(receipt, StatusFailed)
		return nil
	}
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, receipt.ID); err != nil {
		return xerrors.Wrap(CodeBridgePublish, err, fmt.Sprintf("回执 %s 重投失败", receipt.ID))
	}
	p.logDebug("回执已重新排队", slog.String("receipt_id", receipt.ID), slog.Int("attempts", receipt.Attempts))
	return nil
}

func (p *Processor) observe(receipt *Receipt, status Status) {
	if p.observer != nil {
		p.observer.ReceiptSettled(receipt, status)
	}
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

func (p *Processor) emitAlert(ctx context.Context, receipt *Receipt, code xerrors.Code, cause error, stage string) {
	if p.alerter == nil || receipt == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	metadata := map[string]string{"stage": stage}
	if p.submitter != nil {
		metadata["submitter"] = p.submitter.Name()
	}
	if cause != nil {
		message = cause.Error()
		metadata["cause"] = cause.Error()
		if xe, ok := xerrors.From(cause); ok {
			for k, v := range xe.Metadata() {
				metadata[k] = v
			}
		}
	}
	event := alerting.Event{
		Code:        code,
		Message:     message,
		Severity:    attrs.Severity,
		ReceiptID:   receipt.ID,
		PayloadHash: receipt.PayloadHash,
		Attempts:    receipt.Attempts,
		MaxAttempts: receipt.MaxAttempts,
		Metadata:    metadata,
		OccurredAt:  time.Now(),
	}
	if receipt.AnchorType.Valid() {
		event.AnchorType = receipt.AnchorType.String()
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("receipt_id", receipt.ID),
			slog.String("stage", stage),
		)
	}
}
