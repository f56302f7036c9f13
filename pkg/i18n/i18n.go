package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	ServerListening    string
	ShuttingDown       string
	ConfigLoadFailed   string
	APIServerError     string
	TokenIssueFailed   string
	PaperMode          string
	LiveMode           string
	LiveModeNoExchange string

	// Exchanges
	ExchangeRegistered string
	ExchangeInitFailed string

	// Orders
	OrderSimulated        string
	OrderExecuted         string
	OrderFailed           string
	OrderRejected         string
	FillPriceZeroFallback string
	SellExceedsPositions  string

	// Store
	StoreBackend        string
	StoreOpenFailed     string
	StoreSkipTrade      string
	StoreSkipPosition   string
	StoreSkipClose      string
	StoreTradeFailed    string
	StorePositionFailed string
	StoreDeleteFailed   string
	StoreUpdateFailed   string
	StoreListFailed     string
	PnLQueryFailed      string

	// Strategy
	StrategyLoaded           string
	StrategyConfigLoaded     string
	StrategyConfigLoadFailed string
	StrategyInvalid          string
	StrategyNoPrice          string
	StrategyNotEnoughData    string
	StrategySignal           string

	// Control
	ControlApplied string
	LoopStarted    string
	LoopStopped    string
	LoopKilled     string
	LoopFault      string
	LoopPanic      string

	// API
	APIRequest      string
	APIRateLimited  string
	WSUpgradeFailed string
	WSWriteFailed   string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting trading agent...",
	ConfigLoaded:       "Config loaded (Port: %s, Mode: %s)",
	ServerListening:    "Server listening on :%s",
	ShuttingDown:       "Shutting down gracefully...",
	ConfigLoadFailed:   "Failed to load config: %v",
	APIServerError:     "API server error: %v",
	TokenIssueFailed:   "Failed to issue token: %v",
	PaperMode:          "Running in PAPER mode (orders are simulated)",
	LiveMode:           "Running in LIVE mode (orders go to %s)",
	LiveModeNoExchange: "LIVE mode without exchange keys: every order will be rejected",

	// Exchanges
	ExchangeRegistered: "Exchange %s registered (trading keys: %t)",
	ExchangeInitFailed: "Failed to set up exchanges: %v",

	// Orders
	OrderSimulated:        "executor: simulated %s %s %.8f @ %.2f",
	OrderExecuted:         "executor: %s filled %s %s %.8f @ %.2f (order %s)",
	OrderFailed:           "executor: %s order failed %s %s %.8f: %v",
	OrderRejected:         "executor: rejected %s %s %.8f: %v",
	FillPriceZeroFallback: "executor: no price for %s, simulating at 0",
	SellExceedsPositions:  "executor: sell on %s exceeds open positions by %.8f",

	// Store
	StoreBackend:        "store: using %s backend",
	StoreOpenFailed:     "store: %s backend unavailable, running without persistence: %v",
	StoreSkipTrade:      "store: not configured, trade not recorded",
	StoreSkipPosition:   "store: not configured, position not recorded",
	StoreSkipClose:      "store: not configured, positions not updated",
	StoreTradeFailed:    "store: record trade %s %s failed: %v",
	StorePositionFailed: "store: insert position %s failed: %v",
	StoreDeleteFailed:   "store: delete position %s (%s) failed: %v",
	StoreUpdateFailed:   "store: update position %s (%s) failed: %v",
	StoreListFailed:     "store: list positions %q failed: %v",
	PnLQueryFailed:      "api: pnl query failed: %v",

	// Strategy
	StrategyLoaded:           "Strategy SMA crossover on %s %s (short=%d long=%d size=%g)",
	StrategyConfigLoaded:     "Strategy overlay loaded from %s",
	StrategyConfigLoadFailed: "Failed to load strategy overlay, using env settings: %v",
	StrategyInvalid:          "Invalid strategy settings: %v",
	StrategyNoPrice:          "strategy: no price for %s, skipping",
	StrategyNotEnoughData:    "strategy: not enough candles for %s (%d < %d), skipping",
	StrategySignal:           "strategy: %s signal on %s at %.2f (short=%.4f long=%.4f)",

	// Control
	ControlApplied: "control: %s applied by %s (running=%t killed=%t)",
	LoopStarted:    "loop: started (interval %v, fault retry %v)",
	LoopStopped:    "loop: stopped",
	LoopKilled:     "loop: trading killed, sleeping %v",
	LoopFault:      "loop: cycle failed: %v (retry in %v)",
	LoopPanic:      "loop: PANIC in cycle: %v\n%s",

	// API
	APIRequest:      "[API] %s | %s %s | %d | %v | %s",
	APIRateLimited:  "[RATE_LIMIT] IP %s exceeded rate limit",
	WSUpgradeFailed: "ws upgrade error: %v",
	WSWriteFailed:   "ws write error: %v",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:           "啟動交易代理...",
	ConfigLoaded:       "設定已載入（埠號：%s，模式：%s）",
	ServerListening:    "服務監聽於 :%s",
	ShuttingDown:       "正在優雅關閉...",
	ConfigLoadFailed:   "讀取設定失敗：%v",
	APIServerError:     "API 伺服器錯誤：%v",
	TokenIssueFailed:   "簽發權杖失敗：%v",
	PaperMode:          "PAPER 模式（委託僅模擬）",
	LiveMode:           "LIVE 模式（委託送往 %s）",
	LiveModeNoExchange: "LIVE 模式但未設定交易所金鑰：所有委託將被拒絕",

	// Exchanges
	ExchangeRegistered: "交易所 %s 已註冊（交易金鑰：%t）",
	ExchangeInitFailed: "設定交易所失敗：%v",

	// Orders
	OrderSimulated:        "executor：模擬成交 %s %s %.8f @ %.2f",
	OrderExecuted:         "executor：%s 成交 %s %s %.8f @ %.2f（委託 %s）",
	OrderFailed:           "executor：%s 委託失敗 %s %s %.8f：%v",
	OrderRejected:         "executor：拒絕 %s %s %.8f：%v",
	FillPriceZeroFallback: "executor：%s 無價格，以 0 模擬成交",
	SellExceedsPositions:  "executor：%s 賣出數量超出持倉 %.8f",

	// Store
	StoreBackend:        "store：使用 %s 後端",
	StoreOpenFailed:     "store：%s 後端無法使用，改為不持久化：%v",
	StoreSkipTrade:      "store：未設定，交易未記錄",
	StoreSkipPosition:   "store：未設定，持倉未記錄",
	StoreSkipClose:      "store：未設定，持倉未更新",
	StoreTradeFailed:    "store：記錄交易 %s %s 失敗：%v",
	StorePositionFailed: "store：新增持倉 %s 失敗：%v",
	StoreDeleteFailed:   "store：刪除持倉 %s（%s）失敗：%v",
	StoreUpdateFailed:   "store：更新持倉 %s（%s）失敗：%v",
	StoreListFailed:     "store：查詢持倉 %q 失敗：%v",
	PnLQueryFailed:      "api：損益查詢失敗：%v",

	// Strategy
	StrategyLoaded:           "策略 SMA 交叉 %s %s（short=%d long=%d size=%g）",
	StrategyConfigLoaded:     "已從 %s 載入策略設定",
	StrategyConfigLoadFailed: "載入策略設定失敗，改用環境變數：%v",
	StrategyInvalid:          "策略設定無效：%v",
	StrategyNoPrice:          "strategy：%s 無價格，略過",
	StrategyNotEnoughData:    "strategy：%s K 線不足（%d < %d），略過",
	StrategySignal:           "strategy：%s 訊號 %s 價格 %.2f（short=%.4f long=%.4f）",

	// Control
	ControlApplied: "control：%[2]s 已套用 %[1]s（running=%[3]t killed=%[4]t）",
	LoopStarted:    "loop：已啟動（週期 %v，錯誤重試 %v）",
	LoopStopped:    "loop：已停止",
	LoopKilled:     "loop：交易已終止，休眠 %v",
	LoopFault:      "loop：週期失敗：%v（%v 後重試）",
	LoopPanic:      "loop：週期發生 PANIC：%v\n%s",

	// API
	APIRequest:      "[API] %s | %s %s | %d | %v | %s",
	APIRateLimited:  "[RATE_LIMIT] IP %s 超過速率限制",
	WSUpgradeFailed: "ws 升級錯誤：%v",
	WSWriteFailed:   "ws 寫入錯誤：%v",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
