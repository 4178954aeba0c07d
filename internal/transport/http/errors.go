package httptransport

import (
	"anondrop/backend/internal/auth"
	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 令牌错误
	service.ErrTokenNotFound: "投递令牌不存在",
	service.ErrTokenInactive: "投递令牌已停用",
	service.ErrTokenExpired:  "投递令牌已过期",
	service.ErrTokenConsumed: "一次性令牌已被使用",
	service.ErrForbidden:     "没有权限操作该资源",

	// 投递错误
	service.ErrDepositNotFound:    "投递记录不存在",
	service.ErrStorageUnavailable: "文件存储暂时不可用",
	domain.ErrInvalidTokenID:      "令牌格式无效",
	domain.ErrEmptyContent:        "投递内容不能为空",
	domain.ErrTextTooLong:         "文本内容超出长度限制",

	// 文件策略错误
	security.ErrUnsafeFileType: "该文件类型不允许投递",
	security.ErrFileTooLarge:   "文件超出大小限制",

	// PIN 错误
	domain.ErrInvalidPinFormat: "PIN 必须是 4-6 位数字",
	auth.ErrPinNotSet:          "尚未设置收件箱 PIN",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest  = "请求参数格式错误"
	MsgInvalidDuration = "时长格式无效"

	// 认证相关
	MsgAuthRequired = "需要登录认证"
	MsgTokenExpired = "登录已过期，请重新登录"
	MsgTokenInvalid = "无效的访问令牌"

	// 令牌相关
	MsgTokenCreateFailed = "创建投递令牌失败"
	MsgTokenNotFound     = "投递令牌不存在"
	MsgTokenListFailed   = "获取令牌列表失败"
	MsgTokenUpdateFailed = "更新令牌状态失败"
	MsgTokenDeleteFailed = "删除令牌失败"

	// 投递相关
	MsgDepositFailed    = "投递失败"
	MsgDepositNotFound  = "投递记录不存在"
	MsgFileUploadFailed = "读取上传文件失败"
	MsgFileStoreFailed  = "保存上传文件失败"

	// 收件箱相关
	MsgInboxListFailed  = "获取收件箱失败"
	MsgInboxClearFailed = "清空收件箱失败"
	MsgInboxLocked      = "收件箱已锁定，请先通过 PIN 校验"

	// PIN 相关
	MsgPinSetFailed    = "设置 PIN 失败"
	MsgPinVerifyFailed = "PIN 校验失败"
	MsgPinMismatch     = "两次输入的 PIN 不一致"
	MsgSessionLocked   = "失败次数过多，会话已锁定"
	MsgSessionNotFound = "会话不存在或已过期"

	// 统计相关
	MsgStatsFailed = "获取统计数据失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
