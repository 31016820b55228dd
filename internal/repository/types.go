package repository

import "time"

// SplitHistoryFilter 查询结算历史的过滤条件
type SplitHistoryFilter struct {
	Page            int
	PageSize        int
	HouseID         uint
	TransferredFrom *time.Time
	TransferredTo   *time.Time
}

// HouseListFilter 查询馆方列表的过滤条件
type HouseListFilter struct {
	Page     int
	PageSize int
	Keyword  string
}
