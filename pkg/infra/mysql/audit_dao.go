package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/lookup"
)

// OrderLookup 订单查询审计，每次解析一行
type OrderLookup struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"column:conversation_id;size:64;index"`
	OrderNumber    string    `gorm:"column:order_number;size:32;index"`
	Platform       string    `gorm:"column:platform;size:16"`
	Status         string    `gorm:"column:status;size:32"`
	Outcome        string    `gorm:"column:outcome;size:16"`
	ResponseTimeMs int64     `gorm:"column:response_time_ms"`
	CacheHit       bool      `gorm:"column:cache_hit"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName 表名
func (OrderLookup) TableName() string { return "order_lookups" }

// SupportTicket 工单审计
type SupportTicket struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	TicketID       string    `gorm:"column:ticket_id;size:64;uniqueIndex"`
	ConversationID string    `gorm:"column:conversation_id;size:64;index"`
	OrderNumber    string    `gorm:"column:order_number;size:32"`
	Reason         string    `gorm:"column:reason;size:32"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName 表名
func (SupportTicket) TableName() string { return "support_tickets" }

// AuditDAO 审计数据访问对象
type AuditDAO struct {
	db *gorm.DB
}

// NewAuditDAO 创建 AuditDAO 实例
func NewAuditDAO(dsn string) (*AuditDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &AuditDAO{db: db}, nil
}

// NewAuditDAOWithDB 使用已有连接
func NewAuditDAOWithDB(db *gorm.DB) *AuditDAO {
	return &AuditDAO{db: db}
}

// Migrate 建表
func (dao *AuditDAO) Migrate(ctx context.Context) error {
	if err := dao.db.WithContext(ctx).AutoMigrate(&OrderLookup{}, &SupportTicket{}); err != nil {
		return fmt.Errorf("failed to migrate audit tables: %w", err)
	}
	return nil
}

// RecordLookup 写入查询审计
func (dao *AuditDAO) RecordLookup(ctx context.Context, rec lookup.Record) error {
	row := &OrderLookup{
		ConversationID: rec.ConversationID,
		OrderNumber:    rec.OrderNumber,
		Platform:       rec.Platform,
		Status:         rec.Status,
		Outcome:        rec.Outcome,
		ResponseTimeMs: rec.ResponseTime.Milliseconds(),
		CacheHit:       rec.CacheHit,
	}
	if err := dao.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert order lookup: %w", err)
	}
	return nil
}

// RecordTicket 写入工单审计
func (dao *AuditDAO) RecordTicket(ctx context.Context, rec escalation.TicketRecord) error {
	row := &SupportTicket{
		TicketID:       rec.TicketID,
		ConversationID: rec.ConversationID,
		OrderNumber:    rec.OrderNumber,
		Reason:         rec.Reason,
	}
	if err := dao.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert support ticket: %w", err)
	}
	return nil
}

// CountLookups 统计某会话的查询次数
func (dao *AuditDAO) CountLookups(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := dao.db.WithContext(ctx).Model(&OrderLookup{}).Where("conversation_id = ?", conversationID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count lookups: %w", err)
	}
	return n, nil
}

// Close 关闭数据库连接
func (dao *AuditDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
