package constants

// 分账结算状态常量
// processing 是自动转账在途的短暂占位态：对外发起转账前由条件更新
// 占有分账行，终态确认后迁移到 completed/failed 或回退 pending。
const (
	TransferStatusPending    = "pending"
	TransferStatusProcessing = "processing"
	TransferStatusCompleted  = "completed"
	TransferStatusFailed     = "failed"
)

// 佣金类型常量
const (
	CommissionTypePercentage = "percentage"
	CommissionTypeFixed      = "fixed"
	CommissionTypeFlatFee    = "flat_fee"
)

// 自动转账尝试结果常量
const (
	AttemptOutcomeCompleted  = "completed"
	AttemptOutcomeRejected   = "rejected"
	AttemptOutcomeUncertain  = "uncertain"
	AttemptOutcomeReconciled = "reconciled"
)

// Pix 键类型常量
const (
	PixKeyTypeCPF    = "cpf"
	PixKeyTypeCNPJ   = "cnpj"
	PixKeyTypeEmail  = "email"
	PixKeyTypePhone  = "phone"
	PixKeyTypeRandom = "random"
)

// 处理商转账状态常量
const (
	ProcessorTransferSuccess  = "success"
	ProcessorTransferRejected = "rejected"
	ProcessorTransferPending  = "pending"
)

// 人工结算凭证前缀常量
const (
	ManualReferencePrefix = "MANUAL"
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskSettlementReconcile = "settlement:reconcile"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault        = "sp"
	CacheKeyObligations       = "settlement:obligations"
	ObligationCacheTTLSeconds = 30
)

// 币种常量
const (
	SiteCurrencyDefault = "BRL"
)
