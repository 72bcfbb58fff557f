package screen

import (
	"fmt"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// 各テーブルを作成するマイグレーション
const (
	MigrationProfiles       = "000001_create_profiles"
	MigrationMasters        = "000002_create_masters"
	MigrationCommunity      = "000003_create_community"
	MigrationRecords        = "000004_create_records_and_reviews"
	MigrationConsultations  = "000005_create_consultations"
	MigrationModules        = "000006_create_modules"
	MigrationServiceColumns = "000007_add_master_service_consultation_fields"
)

// Catalog は画面キーから画面設定を引く。
type Catalog struct {
	screens []*Screen
	byKey   map[string]*Screen
}

// NewCatalog は画面の一覧からCatalogを生成する。キーが重複する場合はpanicする。
func NewCatalog(screens ...*Screen) *Catalog {
	c := &Catalog{byKey: make(map[string]*Screen, len(screens))}
	for _, s := range screens {
		if _, dup := c.byKey[s.Key]; dup {
			panic(fmt.Sprintf("screen: duplicate key %q", s.Key))
		}
		c.screens = append(c.screens, s)
		c.byKey[s.Key] = s
	}
	return c
}

// Lookup はキーに一致する画面を返す。
func (c *Catalog) Lookup(key string) (*Screen, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

// Menu はメニューに表示する画面を定義順に返す。
func (c *Catalog) Menu() []*Screen {
	menu := make([]*Screen, 0, len(c.screens))
	for _, s := range c.screens {
		if !s.HiddenFromMenu {
			menu = append(menu, s)
		}
	}
	return menu
}

// ChildOf は親としてkeyの画面を参照する画面を返す。
func (c *Catalog) ChildOf(key string) (*Screen, bool) {
	for _, s := range c.screens {
		if s.Parent != nil && s.Parent.Screen == key {
			return s, true
		}
	}
	return nil, false
}

// DefaultCatalog は管理コンソールの全画面を返す。
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Modules(),
		Masters(),
		MasterServices(),
		Posts(),
		Comments(),
		Records(),
		Reviews(),
		Consultations(),
		Settlements(),
		Escrow(),
		PaymentTransactions(),
		RiskControl(),
		CommunitySections(),
		CommunitySubsections(),
	)
}

var (
	createdAtDesc = []repository.Order{{Column: "created_at", Desc: true}}
	byOrderIndex  = []repository.Order{{Column: "order_index"}}

	colID        = Column{Name: "id", Label: "ID", Format: FormatTruncate}
	colCreatedAt = Column{Name: "created_at", Label: "创建时间", Format: FormatDateTime}
	enabledField = Field{Name: "is_enabled", Label: "启用", Kind: KindBool, Default: true}
	orderField   = Field{Name: "order_index", Label: "排序", Kind: KindInteger, Default: int64(0), Rules: "gte=0"}
)

// Modules は機能モジュールの画面。
func Modules() *Screen {
	return &Screen{
		Key:       "modules",
		Title:     "模块管理",
		Table:     "modules",
		Migration: MigrationModules,
		Columns: []Column{
			{Name: "name", Label: "模块名"},
			{Name: "display_name", Label: "显示名称"},
			{Name: "description", Label: "描述", Format: FormatTruncate},
			{Name: "order_index", Label: "排序"},
			{Name: "is_enabled", Label: "状态", Format: FormatBool},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "name", Label: "模块名", Rules: "required,max=64", Help: "英文标识符，例如 divination"},
			{Name: "display_name", Label: "显示名称", Rules: "required,max=64"},
			{Name: "description", Label: "描述", Kind: KindTextarea},
			orderField,
			enabledField,
		},
		Order:        byOrderIndex,
		Capabilities: CapsCRUD,
		Unique:       []Unique{{Columns: []string{"name"}, Message: "模块名已存在"}},
	}
}

var onlineStatusLabels = map[string]string{"online": "在线", "busy": "忙碌", "offline": "离线"}

// Masters は卦師の画面。直近30日の完了件数を計算列で表示する。
func Masters() *Screen {
	return &Screen{
		Key:       "masters",
		Title:     "卦师管理",
		Table:     "masters",
		Migration: MigrationMasters,
		Columns: []Column{
			{Name: "avatar_url", Label: "头像", Format: FormatImage},
			colID,
			{Name: "user_id", Label: "用户ID", Format: FormatTruncate},
			{Name: "name", Label: "姓名"},
			{Name: "title", Label: "头衔"},
			{Name: "rating", Label: "评分"},
			{Name: "reviews_count", Label: "评价数"},
			{Name: "experience_years", Label: "从业年限"},
			{Name: "online_status", Label: "在线状态", Format: FormatEnum, Labels: onlineStatusLabels},
			{Name: "min_price", Label: "起步价", Format: FormatMoney},
			{Name: "orders_30d", Label: "近30天订单"},
			{Name: "is_active", Label: "状态", Format: FormatBool},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "user_id", Label: "用户ID", Rules: "required,uuid", CreateOnly: true},
			{Name: "name", Label: "姓名", Rules: "required,max=64"},
			{Name: "title", Label: "头衔", Rules: "max=64"},
			{Name: "certification", Label: "资质认证"},
			{Name: "experience_years", Label: "从业年限", Kind: KindInteger, Rules: "gte=0,lte=100"},
			{Name: "online_status", Label: "在线状态", Kind: KindSelect, Default: "offline", Options: []Option{
				{Value: "online", Label: "在线"}, {Value: "busy", Label: "忙碌"}, {Value: "offline", Label: "离线"},
			}},
			{Name: "min_price", Label: "起步价", Kind: KindNumber, Rules: "required,gte=0", Default: float64(0)},
			{Name: "expertise", Label: "擅长领域", Kind: KindList, Separator: "、"},
			{Name: "highlight", Label: "亮点"},
			{Name: "description", Label: "简介", Kind: KindTextarea},
			{Name: "achievements", Label: "成就", Kind: KindList, Separator: "\n", Help: "每行一项"},
			{Name: "service_types", Label: "服务类型", Kind: KindList, Separator: "、"},
			{Name: "avatar_url", Label: "头像URL", Rules: "url"},
			{Name: "is_active", Label: "启用", Kind: KindBool, Default: true},
		},
		Computed: []string{
			"(SELECT count(*) FROM consultations c WHERE c.master_id = masters.id" +
				" AND c.status = 'completed' AND c.created_at >= now() - interval '30 days') AS orders_30d",
		},
		Order:        createdAtDesc,
		Capabilities: CapsCRUD,
		Unique:       []Unique{{Columns: []string{"user_id"}, Message: "该用户已经是卦师"}},
	}
}

// MasterServices は卦師ごとのサービス項目の画面。
// 相談関連の列は後から追加されたため、列がない環境では外して保存する。
func MasterServices() *Screen {
	return &Screen{
		Key:       "master-services",
		Title:     "服务项目",
		Table:     "master_services",
		Migration: MigrationMasters,
		Parent:    &Parent{Column: "master_id", Screen: "masters", Label: "卦师"},
		Columns: []Column{
			{Name: "name", Label: "服务名称"},
			{Name: "service_type", Label: "服务类型"},
			{Name: "price", Label: "价格", Format: FormatMoney},
			{Name: "order_index", Label: "排序"},
			{Name: "is_active", Label: "状态", Format: FormatBool},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "name", Label: "服务名称", Rules: "required,max=64"},
			{Name: "price", Label: "价格", Kind: KindNumber, Rules: "required,gte=0"},
			{Name: "service_type", Label: "服务类型", Kind: KindSelect, Rules: "required", Options: []Option{
				{Value: "图文", Label: "图文"}, {Value: "语音", Label: "语音"},
			}},
			orderField,
			{Name: "description", Label: "描述", Kind: KindTextarea},
			{Name: "is_active", Label: "启用", Kind: KindBool, Default: true},
			{Name: "consultation_duration_minutes", Label: "服务时长", Kind: KindInteger, Rules: "gt=0",
				OmitEmpty: true, Droppable: true, Migration: MigrationServiceColumns},
			{Name: "consultation_session_count", Label: "服务次数", Kind: KindInteger, Rules: "gt=0",
				OmitEmpty: true, Droppable: true, Migration: MigrationServiceColumns},
			{Name: "requires_birth_info", Label: "要求出生信息", Kind: KindBool,
				Droppable: true, Migration: MigrationServiceColumns},
			{Name: "question_min_length", Label: "问题最小字数", Kind: KindInteger, Rules: "gte=0", Default: int64(30),
				Droppable: true, Migration: MigrationServiceColumns},
			{Name: "question_max_length", Label: "问题最大字数", Kind: KindInteger, Rules: "gt=0", Default: int64(800),
				Droppable: true, Migration: MigrationServiceColumns},
		},
		Order:          []repository.Order{{Column: "order_index"}, {Column: "created_at"}},
		Capabilities:   CapsCRUD,
		HiddenFromMenu: true,
		CreatedMessage: "服务项目创建成功",
		UpdatedMessage: "服务项目更新成功",
		DeletedMessage: "删除服务项目成功",
		Validate: func(v repository.Row) []string {
			minLen, okMin := v["question_min_length"].(int64)
			maxLen, okMax := v["question_max_length"].(int64)
			if okMin && okMax && maxLen < minLen {
				return []string{fmt.Sprintf("问题最大字数(%d)不能小于最小字数(%d)", maxLen, minLen)}
			}
			return nil
		},
	}
}

// Posts は投稿の画面。本文HTMLは保存前にサニタイズする。
func Posts() *Screen {
	return &Screen{
		Key:       "posts",
		Title:     "帖子管理",
		Table:     "posts",
		Migration: MigrationCommunity,
		Columns: []Column{
			colID,
			{Name: "title", Label: "标题", Format: FormatTruncate},
			{Name: "section", Label: "分类"},
			{Name: "status", Label: "状态", Format: FormatEnum, Labels: postStatusLabels},
			{Name: "view_count", Label: "浏览数"},
			{Name: "like_count", Label: "点赞数"},
			{Name: "comment_count", Label: "评论数"},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "user_id", Label: "作者ID", Rules: "required,uuid", CreateOnly: true},
			{Name: "title", Label: "标题", Rules: "required,max=200"},
			{Name: "content", Label: "内容", Kind: KindTextarea, Rules: "required"},
			{Name: "content_html", Label: "内容HTML", Kind: KindTextarea, Sanitize: true},
			{Name: "section", Label: "分类", Kind: KindSelect, OmitEmpty: true, Options: []Option{
				{Value: "study", Label: "学习"}, {Value: "help", Label: "求助"},
				{Value: "casual", Label: "闲聊"}, {Value: "announcement", Label: "公告"},
			}},
			{Name: "status", Label: "状态", Kind: KindSelect, OmitEmpty: true, Options: []Option{
				{Value: "published", Label: "已发布"}, {Value: "pending", Label: "待审核"},
				{Value: "hidden", Label: "已隐藏"}, {Value: "rejected", Label: "已拒绝"},
			}},
		},
		Order:        createdAtDesc,
		Capabilities: CapsCRUD,
		BeforeSave: func(v repository.Row, creating bool, _ time.Time) {
			if creating {
				v["view_count"] = int64(0)
				v["like_count"] = int64(0)
				v["comment_count"] = int64(0)
			}
		},
	}
}

var postStatusLabels = map[string]string{
	"published": "已发布", "pending": "待审核", "hidden": "已隐藏", "rejected": "已拒绝",
}

// Comments はコメントの画面。
func Comments() *Screen {
	return &Screen{
		Key:       "comments",
		Title:     "评论管理",
		Table:     "comments",
		Migration: MigrationCommunity,
		Columns: []Column{
			colID,
			{Name: "content", Label: "内容", Format: FormatTruncate},
			{Name: "like_count", Label: "点赞数"},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "content", Label: "内容", Kind: KindTextarea, Rules: "required"},
		},
		Order:        createdAtDesc,
		Capabilities: CapRead | CapUpdate | CapDelete,
	}
}

// Records は占い記録の画面。
func Records() *Screen {
	return &Screen{
		Key:       "records",
		Title:     "占卜记录",
		Table:     "divination_records",
		Migration: MigrationRecords,
		Columns: []Column{
			colID,
			{Name: "question", Label: "问题", Format: FormatTruncate},
			{Name: "divination_time", Label: "占卜时间", Format: FormatDateTime},
			{Name: "method", Label: "方法", Format: FormatEnum, Labels: map[string]string{"1": "硬币法", "2": "数字法"}},
			{Name: "original_key", Label: "本卦"},
			{Name: "changed_key", Label: "变卦"},
			colCreatedAt,
		},
		Order:        createdAtDesc,
		Limit:        100,
		Capabilities: CapRead | CapDelete,
	}
}

// Reviews は卦師評価の画面。
func Reviews() *Screen {
	return &Screen{
		Key:       "reviews",
		Title:     "评价管理",
		Table:     "master_reviews",
		Migration: MigrationRecords,
		Columns: []Column{
			colID,
			{Name: "rating", Label: "评分"},
			{Name: "content", Label: "内容", Format: FormatTruncate},
			{Name: "tags", Label: "标签", Format: FormatList},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "rating", Label: "评分", Kind: KindInteger, Rules: "required,gte=1,lte=5"},
			{Name: "content", Label: "内容", Kind: KindTextarea},
			{Name: "tags", Label: "标签", Kind: KindList, Separator: "、"},
		},
		Order:        createdAtDesc,
		Capabilities: CapRead | CapUpdate | CapDelete,
	}
}

var consultationStatusLabels = map[string]string{
	"pending_payment":    "待支付",
	"awaiting_master":    "待接单",
	"in_progress":        "咨询中",
	"pending_settlement": "待结算",
	"completed":          "已完成",
	"cancelled":          "已取消",
	"refunded":           "已退款",
	"timeout_cancelled":  "超时取消",
}

var paymentStatusLabels = map[string]string{
	"unpaid": "未支付", "pending": "支付中", "paid": "已支付", "refunded": "已退款", "failed": "支付失败",
}

var paymentMethodLabels = map[string]string{"wechat": "微信支付", "balance": "余额支付"}

var settlementStatusLabels = map[string]string{
	"pending": "待结算", "processing": "处理中", "completed": "已完成", "failed": "失败",
}

// Consultations は相談注文の画面。
func Consultations() *Screen {
	return &Screen{
		Key:       "consultations",
		Title:     "咨询订单",
		Table:     "consultations",
		Migration: MigrationConsultations,
		Columns: []Column{
			{Name: "id", Label: "订单ID", Format: FormatTruncate},
			{Name: "master_id", Label: "卦师ID", Format: FormatTruncate},
			{Name: "user_id", Label: "用户ID", Format: FormatTruncate},
			{Name: "question_summary", Label: "问题摘要", Format: FormatTruncate},
			{Name: "price", Label: "金额", Format: FormatMoney},
			{Name: "payment_method", Label: "支付方式", Format: FormatEnum, Labels: paymentMethodLabels},
			{Name: "payment_status", Label: "支付状态", Format: FormatEnum, Labels: paymentStatusLabels},
			{Name: "status", Label: "订单状态", Format: FormatEnum, Labels: consultationStatusLabels},
			{Name: "settlement_status", Label: "结算状态", Format: FormatEnum, Labels: settlementStatusLabels},
			colCreatedAt,
		},
		Filter: &Filter{Column: "status", Label: "订单状态", Options: []FilterOption{
			{Value: "pending_payment", Label: "待支付"},
			{Value: "awaiting_master", Label: "待接单"},
			{Value: "in_progress", Label: "咨询中"},
			{Value: "pending_settlement", Label: "待结算"},
			{Value: "completed", Label: "已完成"},
			{Value: "refunded", Label: "已退款"},
		}},
		Order:        createdAtDesc,
		Limit:        100,
		Capabilities: CapsReadOnly,
	}
}

// Settlements は卦師への精算の画面。
func Settlements() *Screen {
	return &Screen{
		Key:       "settlements",
		Title:     "结算管理",
		Table:     "master_settlements",
		Migration: MigrationConsultations,
		Columns: []Column{
			{Name: "id", Label: "结算ID", Format: FormatTruncate},
			{Name: "master_id", Label: "卦师ID", Format: FormatTruncate},
			{Name: "consultation_id", Label: "订单ID", Format: FormatTruncate},
			{Name: "total_amount", Label: "订单总额", Format: FormatMoney},
			{Name: "platform_fee_amount", Label: "平台服务费", Format: FormatMoney},
			{Name: "payout_amount", Label: "结算金额", Format: FormatMoney},
			{Name: "settlement_status", Label: "结算状态", Format: FormatEnum, Labels: settlementStatusLabels},
			{Name: "payout_method", Label: "打款方式"},
			{Name: "payout_account", Label: "打款账户"},
			{Name: "payout_transaction_no", Label: "交易单号"},
			{Name: "failure_reason", Label: "失败原因", Format: FormatTruncate},
			colCreatedAt,
			{Name: "completed_at", Label: "完成时间", Format: FormatDateTime},
		},
		Filter: &Filter{Column: "settlement_status", Label: "结算状态", Options: []FilterOption{
			{Value: "pending", Label: "待结算"},
			{Value: "processing", Label: "处理中"},
			{Value: "completed", Label: "已完成"},
			{Value: "failed", Label: "失败"},
		}},
		Summary: []SummaryItem{
			{Label: "订单总额", Column: "total_amount"},
			{Label: "平台服务费", Column: "platform_fee_amount"},
			{Label: "结算总额", Column: "payout_amount"},
			{Label: "待结算", WhereColumn: "settlement_status", WhereValue: "pending", Count: true},
			{Label: "已完成", WhereColumn: "settlement_status", WhereValue: "completed", Count: true},
		},
		Order:        createdAtDesc,
		Limit:        100,
		Capabilities: CapsReadOnly,
	}
}

// Escrow はプラットフォーム預かり金の画面。
func Escrow() *Screen {
	return &Screen{
		Key:       "escrow",
		Title:     "平台托管",
		Table:     "platform_escrow",
		Migration: MigrationConsultations,
		Columns: []Column{
			{Name: "id", Label: "托管ID", Format: FormatTruncate},
			{Name: "consultation_id", Label: "订单ID", Format: FormatTruncate},
			{Name: "amount", Label: "托管金额", Format: FormatMoney},
			{Name: "status", Label: "状态", Format: FormatEnum, Labels: escrowStatusLabels},
			{Name: "held_at", Label: "托管时间", Format: FormatDateTime},
			{Name: "released_at", Label: "释放时间", Format: FormatDateTime},
			colCreatedAt,
		},
		Filter: &Filter{Column: "status", Label: "状态", Options: []FilterOption{
			{Value: "held", Label: "托管中"},
			{Value: "released", Label: "已释放"},
			{Value: "refunded", Label: "已退款"},
		}},
		Summary: []SummaryItem{
			{Label: "托管中总额", Column: "amount", WhereColumn: "status", WhereValue: "held"},
			{Label: "已释放总额", Column: "amount", WhereColumn: "status", WhereValue: "released"},
			{Label: "已退款总额", Column: "amount", WhereColumn: "status", WhereValue: "refunded"},
		},
		Order:        createdAtDesc,
		Limit:        100,
		Capabilities: CapsReadOnly,
	}
}

var escrowStatusLabels = map[string]string{"held": "托管中", "released": "已释放", "refunded": "已退款"}

// PaymentTransactions は決済取引の画面。
func PaymentTransactions() *Screen {
	return &Screen{
		Key:       "payment-transactions",
		Title:     "支付交易",
		Table:     "payment_transactions",
		Migration: MigrationConsultations,
		Columns: []Column{
			{Name: "id", Label: "交易ID", Format: FormatTruncate},
			{Name: "consultation_id", Label: "咨询订单ID", Format: FormatTruncate},
			{Name: "user_id", Label: "用户ID", Format: FormatTruncate},
			{Name: "provider", Label: "支付方式", Format: FormatEnum, Labels: map[string]string{"wechat": "微信支付"}},
			{Name: "amount", Label: "交易金额", Format: FormatMoney},
			{Name: "status", Label: "交易状态", Format: FormatEnum, Labels: transactionStatusLabels},
			{Name: "provider_trade_no", Label: "第三方交易号"},
			colCreatedAt,
			{Name: "updated_at", Label: "更新时间", Format: FormatDateTime},
		},
		Filter: &Filter{Column: "status", Label: "交易状态", Options: []FilterOption{
			{Value: "pending", Label: "待支付"},
			{Value: "prepay_created", Label: "预支付已创建"},
			{Value: "paid", Label: "已支付"},
			{Value: "refunded", Label: "已退款"},
			{Value: "failed", Label: "失败"},
		}},
		Summary: []SummaryItem{
			{Label: "总交易金额", Column: "amount"},
			{Label: "已支付金额", Column: "amount", WhereColumn: "status", WhereValue: "paid"},
			{Label: "已退款金额", Column: "amount", WhereColumn: "status", WhereValue: "refunded"},
			{Label: "待支付", WhereColumn: "status", WhereValue: "pending", Count: true},
			{Label: "已支付", WhereColumn: "status", WhereValue: "paid", Count: true},
			{Label: "失败", WhereColumn: "status", WhereValue: "failed", Count: true},
		},
		Order:        createdAtDesc,
		Limit:        100,
		Capabilities: CapsReadOnly,
	}
}

var transactionStatusLabels = map[string]string{
	"pending": "待支付", "prepay_created": "预支付已创建", "paid": "已支付", "refunded": "已退款", "failed": "失败",
}

// RiskControl は風控違反記録の画面。処理済みにすると処理日時を記録する。
func RiskControl() *Screen {
	return &Screen{
		Key:       "risk-control",
		Title:     "风控管理",
		Table:     "risk_control_violations",
		Migration: MigrationConsultations,
		Columns: []Column{
			{Name: "id", Label: "违规ID", Format: FormatTruncate},
			{Name: "consultation_id", Label: "订单ID", Format: FormatTruncate},
			{Name: "user_id", Label: "用户ID", Format: FormatTruncate},
			{Name: "violation_type", Label: "违规类型", Format: FormatEnum, Labels: map[string]string{
				"private_transaction": "私下交易", "inappropriate_content": "不当内容", "spam": "垃圾信息",
			}},
			{Name: "detected_content", Label: "违规内容", Format: FormatTruncate},
			{Name: "action_taken", Label: "处理措施", Format: FormatEnum, Labels: map[string]string{
				"warning": "警告", "blocked": "已屏蔽", "reported": "已举报",
			}},
			{Name: "is_resolved", Label: "处理状态", Format: FormatBool},
			colCreatedAt,
		},
		Fields: []Field{
			{Name: "is_resolved", Label: "已处理", Kind: KindBool},
		},
		Filter: &Filter{Column: "is_resolved", Label: "处理状态", Options: []FilterOption{
			{Value: "unresolved", Label: "未处理", Match: false},
			{Value: "resolved", Label: "已处理", Match: true},
		}},
		Order:          createdAtDesc,
		Limit:          100,
		Capabilities:   CapRead | CapUpdate,
		UpdatedMessage: "已标记为已处理",
		BeforeSave: func(v repository.Row, _ bool, now time.Time) {
			if resolved, _ := v["is_resolved"].(bool); resolved {
				v["resolved_at"] = now
			} else {
				v["resolved_at"] = nil
			}
		},
	}
}

// CommunitySections は社区の分類の画面。
func CommunitySections() *Screen {
	return &Screen{
		Key:       "community-sections",
		Title:     "社区分类",
		Table:     "community_sections",
		Migration: MigrationCommunity,
		Columns: []Column{
			{Name: "key", Label: "标识符"},
			{Name: "label", Label: "名称"},
			{Name: "description", Label: "描述", Format: FormatTruncate},
			{Name: "order_index", Label: "排序"},
			{Name: "is_enabled", Label: "状态", Format: FormatBool},
		},
		Fields: []Field{
			{Name: "key", Label: "标识符", Rules: "required,max=32"},
			{Name: "label", Label: "名称", Rules: "required,max=32"},
			{Name: "description", Label: "描述", Kind: KindTextarea},
			orderField,
			enabledField,
		},
		Order:        byOrderIndex,
		Capabilities: CapsCRUD,
		Unique:       []Unique{{Columns: []string{"key"}, Message: "分类标识符已存在"}},
	}
}

// CommunitySubsections は分類配下の分区の画面。
func CommunitySubsections() *Screen {
	return &Screen{
		Key:       "community-subsections",
		Title:     "社区分区",
		Table:     "community_subsections",
		Migration: MigrationCommunity,
		Columns: []Column{
			{Name: "section_key", Label: "所属分类"},
			{Name: "key", Label: "标识符"},
			{Name: "label", Label: "名称"},
			{Name: "description", Label: "描述", Format: FormatTruncate},
			{Name: "order_index", Label: "排序"},
			{Name: "is_enabled", Label: "状态", Format: FormatBool},
		},
		Fields: []Field{
			{Name: "section_key", Label: "所属分类", Rules: "required,max=32"},
			{Name: "key", Label: "标识符", Rules: "required,max=32"},
			{Name: "label", Label: "名称", Rules: "required,max=32"},
			{Name: "description", Label: "描述", Kind: KindTextarea},
			orderField,
			enabledField,
		},
		Order:        []repository.Order{{Column: "section_key"}, {Column: "order_index"}},
		Capabilities: CapsCRUD,
		Unique: []Unique{{
			Columns: []string{"section_key", "key"},
			Message: "该分类下已存在相同标识符的分区",
		}},
	}
}
