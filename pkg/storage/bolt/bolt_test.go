package bolt

import (
    "testing"

    "github.com/stretchr/testify/require"
)

func TestDiskStoreSurvivesReopen(t *testing.T) {
    dir := t.TempDir()
    s, err := Open(dir)
    require.NoError(t, err)

    buf, err := s.Load()
    require.NoError(t, err)
    require.Nil(t, buf)

    require.NoError(t, s.Save([]byte(`{"version":1,"seeds":[]}`)))
    require.NoError(t, s.Save([]byte(`{"version":1,"seeds":[{"name":"a.example","trustSupernode":true}]}`)))
    require.NoError(t, s.Close())

    s, err = Open(dir)
    require.NoError(t, err)
    defer s.Close()
    buf, err = s.Load()
    require.NoError(t, err)
    require.JSONEq(t, `{"version":1,"seeds":[{"name":"a.example","trustSupernode":true}]}`, string(buf))
    rev, err := s.Revision()
    require.NoError(t, err)
    require.Equal(t, uint64(2), rev)
}

func TestMemoryStore(t *testing.T) {
    s := NewMemory()
    buf, err := s.Load()
    require.NoError(t, err)
    require.Nil(t, buf)
    rev, err := s.Revision()
    require.NoError(t, err)
    require.Zero(t, rev)

    require.NoError(t, s.Save([]byte("x")))
    buf, err = s.Load()
    require.NoError(t, err)
    require.Equal(t, []byte("x"), buf)
    require.NoError(t, s.Close())
}
