package workflow

import (
	"fmt"
)

// Status 文件生命周期状态码
// 数值是列表视图等外部系统依赖的契约,不能重新编号
type Status int

const (
	StatusDraft       Status = 1 // 草稿
	StatusReviewing   Status = 2 // 审阅中(外部路由使用,核心不解释)
	StatusSubmitted   Status = 3 // 已提交
	StatusReadyToSign Status = 4 // 待签署
	StatusSigned      Status = 5 // 已签署(签署终态)
	StatusDispatched  Status = 6 // 已发送(签署后,外部路由使用)
	StatusArchived    Status = 7 // 已归档
	StatusClosed      Status = 8 // 已关闭
)

// SignerStatus 签署汇总状态
type SignerStatus int

const (
	SignerStatusUnsigned SignerStatus = 0
	SignerStatusSigned   SignerStatus = 1
)

var statusNames = map[Status]string{
	StatusDraft:       "Draft",
	StatusReviewing:   "Dalam Review",
	StatusSubmitted:   "Diajukan",
	StatusReadyToSign: "Siap Ditandatangani",
	StatusSigned:      "Ditandatangani",
	StatusDispatched:  "Dikirim",
	StatusArchived:    "Diarsipkan",
	StatusClosed:      "Selesai",
}

// routes 外部路由允许的状态转换
// 进入 StatusSigned 只能通过 AdvanceOnFullSignature
var routes = map[Status][]Status{
	StatusDraft:       {StatusReviewing, StatusSubmitted, StatusReadyToSign},
	StatusReviewing:   {StatusSubmitted, StatusReadyToSign},
	StatusSubmitted:   {StatusReviewing, StatusReadyToSign},
	StatusReadyToSign: {},
	StatusSigned:      {StatusDispatched, StatusArchived, StatusClosed},
	StatusDispatched:  {StatusArchived, StatusClosed},
	StatusArchived:    {StatusClosed},
	StatusClosed:      {},
}

// ParseStatus 将整数状态码转换为 Status
func ParseStatus(code int) (Status, error) {
	s := Status(code)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("%w: unknown status code %d", ErrInvalidTransition, code)
	}
	return s, nil
}

// Code 返回对外的整数状态码
func (s Status) Code() int {
	return int(s)
}

// Name 返回状态显示名称
func (s Status) Name() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status %d", int(s))
}

// IsTerminal 判断状态是否已经结束签署阶段
func (s Status) IsTerminal() bool {
	return s >= StatusSigned
}

// CanTransition 判断外部路由是否允许从 from 转换到 to
func CanTransition(from, to Status) bool {
	for _, next := range routes[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 校验一次外部路由状态转换
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %d -> %d", ErrInvalidTransition, from, to)
	}
	return nil
}

// Route 对文件执行外部路由状态转换
func (d *Document) Route(to Status) error {
	if err := Transition(d.Status, to); err != nil {
		return err
	}
	d.Status = to
	return nil
}

// AdvanceOnFullSignature 在全部签署人签署后将文件推进到已签署状态
// 返回值 changed 为 false 表示文件已经处于签署终态,调用为空操作
func (d *Document) AdvanceOnFullSignature() (changed bool, err error) {
	if d.Status.IsTerminal() {
		return false, nil
	}
	if d.Status != StatusReadyToSign {
		return false, fmt.Errorf("%w: document in status %d is not ready to sign", ErrInvalidTransition, d.Status)
	}
	if d.AggregateStatus() != SignerStatusSigned {
		return false, fmt.Errorf("%w: not every required signer has signed", ErrInvalidTransition)
	}
	d.Status = StatusSigned
	return true, nil
}
