package protocol

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// toRemoteObject converts a Lua value into the protocol's RemoteObject
// shape. Tables and functions are described, not serialized; the protocol
// core never walks object graphs.
func toRemoteObject(lv lua.LValue) RemoteObject {
	switch v := lv.(type) {
	case *lua.LNilType:
		return RemoteObject{Type: "undefined"}
	case lua.LBool:
		return RemoteObject{Type: "boolean", Value: bool(v)}
	case lua.LNumber:
		f := float64(v)
		return RemoteObject{
			Type:        "number",
			Value:       f,
			Description: strconv.FormatFloat(f, 'g', -1, 64),
		}
	case lua.LString:
		return RemoteObject{Type: "string", Value: string(v)}
	case *lua.LTable:
		return RemoteObject{Type: "object", Description: "table"}
	case *lua.LFunction:
		return RemoteObject{Type: "function", Description: "function"}
	case *lua.LUserData:
		return RemoteObject{Type: "object", Subtype: "userdata", Description: "userdata"}
	default:
		if lv == nil {
			return RemoteObject{Type: "undefined"}
		}
		return RemoteObject{Type: "object", Description: lv.Type().String()}
	}
}
