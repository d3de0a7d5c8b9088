package model

// All 返回需要迁移的模型，顺序满足外键依赖
func All() []interface{} {
	return []interface{}{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}}
}
