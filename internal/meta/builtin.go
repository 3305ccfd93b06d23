package meta

// Builtin is the runtime library shared by every image. It is never swapped,
// so its types always map to themselves.
var Builtin = NewAssembly("System")

// Builtin types, populated by init.
var (
	Object  *Type
	Boolean *Type
	Int32   *Type
	Int64   *Type
	Single  *Type
	Double  *Type
	String  *Type

	// Nullable wraps a value type; its only argument is the wrapped type.
	Nullable *Type

	Action *Type
	Func1  *Type
	Func2  *Type
)

func init() {
	Object = Builtin.Define("System", "Object", KindClass)
	Boolean = Builtin.Define("System", "Boolean", KindPrimitive)
	Int32 = Builtin.Define("System", "Int32", KindPrimitive)
	Int64 = Builtin.Define("System", "Int64", KindPrimitive)
	Single = Builtin.Define("System", "Single", KindPrimitive)
	Double = Builtin.Define("System", "Double", KindPrimitive)
	String = Builtin.Define("System", "String", KindPrimitive)

	Nullable = Builtin.DefineGeneric("System", "Nullable", KindStruct, "T")
	Nullable.AddField("value", Nullable.Param(0))
	Nullable.AddField("hasValue", Boolean)

	Action = Builtin.DefineDelegate("System", "Action", nil)
	Func1 = Builtin.DefineGeneric("System", "Func", KindDelegate, "TResult")
	Func1.AddMethod("Invoke", Func1.Param(0))
	Func2 = Builtin.DefineGeneric("System", "Func", KindDelegate, "T", "TResult")
	Func2.AddMethod("Invoke", Func2.Param(1), Func2.Param(0))
}

// IsPrimitiveName reports whether name is the full name of a builtin primitive.
func IsPrimitiveName(name string) bool {
	t := Builtin.Type(name)
	return t != nil && t.Kind == KindPrimitive
}
