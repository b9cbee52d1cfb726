package workflow

import (
	"fmt"
)

// AddRecipient 添加收件人,按插入顺序记录位置
func (d *Document) AddRecipient(r Recipient) error {
	if d.Recipient(r.RecipientID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateRecipient, r.RecipientID)
	}
	r.Position = len(d.Recipients)
	d.Recipients = append(d.Recipients, &r)
	return nil
}

// Forward 由已有收件人转发给新的收件人
// 转发副本的发送与确认状态独立记录
func (d *Document) Forward(fromRecipientID string, r Recipient) error {
	if d.Recipient(fromRecipientID) == nil {
		return fmt.Errorf("%w: recipient %s", ErrNotFound, fromRecipientID)
	}
	r.Forwarded = true
	r.ForwardedFrom = fromRecipientID
	r.Sent, r.Read, r.Responded = false, false, false
	return d.AddRecipient(r)
}

// Recipient 根据 ID 查找收件人
func (d *Document) Recipient(recipientID string) *Recipient {
	for _, r := range d.Recipients {
		if r.RecipientID == recipientID {
			return r
		}
	}
	return nil
}

// MarkSent 标记已发送,重复调用不改变状态
func (d *Document) MarkSent(recipientID string) (bool, error) {
	return d.setFlag(recipientID, func(r *Recipient) *bool { return &r.Sent })
}

// MarkRead 标记已读
func (d *Document) MarkRead(recipientID string) (bool, error) {
	return d.setFlag(recipientID, func(r *Recipient) *bool { return &r.Read })
}

// MarkResponded 标记已回复
func (d *Document) MarkResponded(recipientID string) (bool, error) {
	return d.setFlag(recipientID, func(r *Recipient) *bool { return &r.Responded })
}

// setFlag 单向设置标志位,返回是否发生变化
func (d *Document) setFlag(recipientID string, field func(*Recipient) *bool) (bool, error) {
	r := d.Recipient(recipientID)
	if r == nil {
		return false, fmt.Errorf("%w: recipient %s", ErrNotFound, recipientID)
	}
	flag := field(r)
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

// ListUnacknowledged 按插入顺序返回尚未阅读的收件人
func (d *Document) ListUnacknowledged() []*Recipient {
	result := make([]*Recipient, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		if !r.Read {
			result = append(result, r)
		}
	}
	return result
}

// ForwardCount 返回转发副本数量
func (d *Document) ForwardCount() int {
	n := 0
	for _, r := range d.Recipients {
		if r.Forwarded {
			n++
		}
	}
	return n
}
