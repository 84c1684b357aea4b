package model

// KitchenStage 后厨阶段。空值表示订单尚未送厨。
type KitchenStage string

const (
	KitchenStageNone      KitchenStage = ""
	KitchenStageToCook    KitchenStage = "to_cook"
	KitchenStagePreparing KitchenStage = "preparing"
	KitchenStageCompleted KitchenStage = "completed"
)

var kitchenStageRank = map[KitchenStage]int{
	KitchenStageNone:      0,
	KitchenStageToCook:    1,
	KitchenStagePreparing: 2,
	KitchenStageCompleted: 3,
}

// Valid 是否为可以由员工指定的阶段
func (k KitchenStage) Valid() bool {
	return k != KitchenStageNone && kitchenStageRank[k] > 0
}

// Started 订单是否已进入后厨流程
func (k KitchenStage) Started() bool { return k != KitchenStageNone }

// Next 紧随其后的阶段
func (k KitchenStage) Next() (KitchenStage, bool) {
	switch k {
	case KitchenStageToCook:
		return KitchenStagePreparing, true
	case KitchenStagePreparing:
		return KitchenStageCompleted, true
	}
	return KitchenStageNone, false
}

// Before 严格早于 other
func (k KitchenStage) Before(other KitchenStage) bool {
	return kitchenStageRank[k] < kitchenStageRank[other]
}

// DeriveKitchenStage 由订单行的出餐标记推导阶段，结果不低于当前阶段
func DeriveKitchenStage(current KitchenStage, prepared, total int) KitchenStage {
	derived := KitchenStageToCook
	switch {
	case total > 0 && prepared == total:
		derived = KitchenStageCompleted
	case prepared > 0:
		derived = KitchenStagePreparing
	}
	if derived.Before(current) {
		return current
	}
	return derived
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:         {OrderStatusSentToKitchen, OrderStatusCancelled},
	OrderStatusSentToKitchen: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:     {OrderStatusCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusSentToKitchen, OrderStatusPreparing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal completed 与 cancelled 为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo 状态迁移是否合法
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
