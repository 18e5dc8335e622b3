package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

func TestFormat_SingleCommand(t *testing.T) {
	list := List{{Command: Key("", "name"), Tree: tree.Tree{"foo": tree.String("bar")}}}
	assert.Equal(t, "noop__name#foo=bar", Format(list))
}

func TestParseOne(t *testing.T) {
	ct, err := ParseOne("x__y#a=1")
	require.NoError(t, err)
	assert.Equal(t, "x__y", ct.Command)
	assert.True(t, tree.Equal(tree.Tree{"a": tree.String("1")}, ct.Tree))
}

func TestParseOne_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"no separator", "noop__name"},
		{"empty command", "#foo=bar"},
		{"empty token", ""},
		{"bad tree", "x__y#a=1&a.b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOne(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestParseOne_WrapsTreeError(t *testing.T) {
	_, err := ParseOne("x__y#a=1&a.b=2")
	var syntaxErr *tree.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestParseList_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n"} {
		list, err := ParseList(input)
		require.NoError(t, err)
		assert.Empty(t, list)
	}
}

func TestParseList_FirstFieldOnly(t *testing.T) {
	list, err := ParseList("a__b#x=1/c__d#y=2 released by the bot\nmore text")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"a__b", "c__d"}, list.Commands())
}

func TestRoundTrip_List(t *testing.T) {
	list := List{
		{Command: "op1__start", Tree: tree.Tree{"data": tree.Tree{"ev": tree.Bytes{1, 2, 3}}}},
		{Command: "noop__name", Tree: tree.Tree{"foo": tree.String("bar")}},
		{Command: "scope__op2__empty", Tree: tree.Tree{}},
		{Command: "op1__flags", Tree: tree.Tree{"on": tree.Bool(true)}},
	}
	require.NoError(t, list.Validate())

	parsed, err := ParseList(Format(list))
	require.NoError(t, err)
	require.Len(t, parsed, len(list))
	for i := range list {
		assert.Equal(t, list[i].Command, parsed[i].Command)
		assert.True(t, tree.Equal(list[i].Tree, parsed[i].Tree), "entry %d", i)
	}
}

func TestKeyAndSplit(t *testing.T) {
	assert.Equal(t, "noop__name", Key("", "name"))
	assert.Equal(t, "op__name", Key("op", "name"))

	prefix, tag, ok := Split("scope__op__reply")
	assert.True(t, ok)
	assert.Equal(t, "scope__op", prefix)
	assert.Equal(t, "reply", tag)

	_, tag, ok = Split("plain")
	assert.False(t, ok)
	assert.Equal(t, "plain", tag)
}

func TestConcatAndIndex(t *testing.T) {
	a := List{{Command: "k__1", Tree: tree.Tree{"v": tree.String("a")}}}
	b := List{{Command: "k__1", Tree: tree.Tree{"v": tree.String("b")}}, {Command: "k__2", Tree: tree.Tree{}}}

	all := Concat(a, b)
	assert.Equal(t, []string{"k__1", "k__1", "k__2"}, all.Commands())

	idx := all.Index()
	assert.Len(t, idx, 2)
	v, _ := idx["k__1"].Text("v")
	assert.Equal(t, "b", v)
}

func TestValidate_RejectsBadCommand(t *testing.T) {
	err := List{{Command: "a/b", Tree: tree.Tree{}}}.Validate()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestValidate_RejectsTreesThatDoNotRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tr   tree.Tree
		want error
	}{
		{"empty subtree", tree.Tree{"data": tree.Tree{}}, tree.ErrEmptySubtree},
		{"text bool", tree.Tree{"on": tree.String("false")}, tree.ErrAmbiguous},
		{"text bytes", tree.Tree{"ev": tree.String(":AQID")}, tree.ErrAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := List{{Command: "op1__x", Tree: tt.tr}}.Validate()
			assert.ErrorIs(t, err, ErrFormat)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
