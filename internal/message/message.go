package message

import (
	"encoding/json"
	"fmt"
	"strings"

	xerrors "AgentLink-Chain/internal/errors"
)

// Type 表示消息的业务标签。标签集合是开放的，协作方可以自定义新标签。
type Type string

const (
	TypeRandom   Type = "RANDOM"
	TypeHello    Type = "HELLO"
	TypeBalance  Type = "BALANCE"
	TypeCrypto   Type = "CRYPTO"
	TypeTransfer Type = "TRANSFER"
)

// Kind 表示元数据值的类型标记。
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindMap    Kind = "map"
)

// Value 是元数据的带类型变体，避免协作方依赖无类型的 map[string]any。
type Value struct {
	kind   Kind
	text   string
	number float64
	flag   bool
	nested Metadata
}

// Text 构造文本值。
func Text(v string) Value {
	return Value{kind: KindText, text: v}
}

// Number 构造数值。
func Number(v float64) Value {
	return Value{kind: KindNumber, number: v}
}

// Bool 构造布尔值。
func Bool(v bool) Value {
	return Value{kind: KindBool, flag: v}
}

// Map 构造嵌套映射值。
func Map(v Metadata) Value {
	return Value{kind: KindMap, nested: v.Clone()}
}

// Kind 返回值的类型标记。
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindText
	}
	return v.kind
}

// Text 以文本形式返回值，第二个返回值表示类型是否匹配。
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// Number 以数值形式返回值。
func (v Value) Number() (float64, bool) {
	return v.number, v.kind == KindNumber
}

// Bool 以布尔形式返回值。
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Map 以嵌套映射形式返回值。
func (v Value) Map() (Metadata, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.nested.Clone(), true
}

// String 实现 fmt.Stringer，便于日志输出。
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.number)
	case KindBool:
		return fmt.Sprintf("%t", v.flag)
	case KindMap:
		return fmt.Sprintf("%v", v.nested)
	default:
		return v.text
	}
}

// MarshalJSON 将变体值序列化为原生 JSON 类型，供远程总线与归档使用。
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.number)
	case KindBool:
		return json.Marshal(v.flag)
	case KindMap:
		return json.Marshal(v.nested)
	default:
		return json.Marshal(v.text)
	}
}

// UnmarshalJSON 根据 JSON 原生类型还原变体值。
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Text(""), nil
	case string:
		return Text(typed), nil
	case float64:
		return Number(typed), nil
	case bool:
		return Bool(typed), nil
	case map[string]any:
		nested := make(Metadata, len(typed))
		for key, value := range typed {
			decoded, err := fromAny(value)
			if err != nil {
				return Value{}, err
			}
			nested[key] = decoded
		}
		return Value{kind: KindMap, nested: nested}, nil
	default:
		return Value{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的元数据类型: %T", raw))
	}
}

// Metadata 是消息携带的附加结构化数据。
type Metadata map[string]Value

// Clone 返回元数据的深拷贝，保证消息构造后不可被外部修改。
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	clone := make(Metadata, len(m))
	for key, value := range m {
		if value.kind == KindMap {
			value.nested = value.nested.Clone()
		}
		clone[key] = value
	}
	return clone
}

// Text 返回指定键的文本值，键不存在或类型不符时返回空串。
func (m Metadata) Text(key string) string {
	value, ok := m[key]
	if !ok {
		return ""
	}
	text, _ := value.Text()
	return text
}

// Number 返回指定键的数值。
func (m Metadata) Number(key string) float64 {
	value, ok := m[key]
	if !ok {
		return 0
	}
	number, _ := value.Number()
	return number
}

// Bool 返回指定键的布尔值。
func (m Metadata) Bool(key string) bool {
	value, ok := m[key]
	if !ok {
		return false
	}
	flag, _ := value.Bool()
	return flag
}

// Message 是智能体之间交换的不可变数据单元。
// 构造之后不再修改；运行时只依赖 Type 与 Content 的语义，不依赖消息身份。
type Message struct {
	Type     Type     `json:"type"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// New 构造一条消息。元数据会被深拷贝以保证不可变性。
func New(msgType Type, content string, metadata Metadata) Message {
	return Message{
		Type:     msgType,
		Content:  content,
		Metadata: metadata.Clone(),
	}
}

// ContainsFold 判断消息正文是否包含指定子串（忽略大小写）。
// 参考处理器的谓词都基于这种正文匹配。
func (m Message) ContainsFold(sub string) bool {
	return strings.Contains(strings.ToLower(m.Content), strings.ToLower(sub))
}
