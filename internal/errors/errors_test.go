package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	// 测试基本错误创建
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 测试带详情的错误
	err = New(ErrCoinRejected, "脉冲数: 8")
	suite.NotNil(err)
	suite.Equal(ErrCoinRejected, err.Code)
	suite.Equal("硬币脉冲无法识别", err.Message)
	suite.Equal("脉冲数: 8", err.Details)

	// 测试多个详情
	err = New(ErrDatabaseConnect, "连接失败", "驱动: sqlite", "路径: ./data")
	suite.Equal("连接失败; 驱动: sqlite; 路径: ./data", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrCoinRejected, "脉冲数 %d 超出范围 [%d, %d]", 12, 1, 10)
	suite.NotNil(err)
	suite.Equal(ErrCoinRejected, err.Code)
	suite.Equal("脉冲数 12 超出范围 [1, 10]", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	// 包装标准错误
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)

	// 包装已有的AppError
	appErr := New(ErrNoCredit, "余额为0")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNoCredit, wrappedAppErr.Code) // 保留原始错误码
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("设备无响应")
	wrappedErr := Wrapf(originalErr, ErrSerialPortOpen, "串口 %s 打开失败", "/dev/ttyUSB0")
	suite.NotNil(wrappedErr)
	suite.Equal(ErrSerialPortOpen, wrappedErr.Code)
	suite.Equal("串口 /dev/ttyUSB0 打开失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrAlreadyDispensing)
	suite.True(Is(err, ErrAlreadyDispensing))
	suite.False(Is(err, ErrNoCredit))
	suite.False(Is(nil, ErrAlreadyDispensing))

	// 测试标准错误
	standardErr := errors.New("标准错误")
	suite.False(Is(standardErr, ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	// AppError
	appErr := New(ErrPINInvalid)
	suite.Equal(ErrPINInvalid, GetCode(appErr))

	// 标准错误
	standardErr := errors.New("标准错误")
	suite.Equal(ErrUnknown, GetCode(standardErr))

	// nil错误
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	// 只有消息
	err := &AppError{
		Code:    ErrNoCredit,
		Message: "余额为零",
	}
	suite.Equal("[2000] 余额为零", err.Error())

	// 有详情
	err.Details = "请先投币"
	suite.Equal("[2000] 余额为零: 请先投币", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())

	// 没有原因的错误
	err := New(ErrUnknown)
	suite.Nil(err.Unwrap())
}

// 测试WithDetails
func (suite *ErrorsTestSuite) TestWithDetails() {
	err := New(ErrInvalidParam)
	err.WithDetails("参数不能为空")
	suite.Equal("参数不能为空", err.Details)
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	err := New(ErrDatabaseQuery)
	cause := errors.New("SQL语法错误")
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)

	// 已有Details的情况
	err2 := New(ErrDatabaseQuery, "查询失败")
	err2.WithCause(cause)
	suite.Equal(cause, err2.Cause)
	suite.Equal("查询失败", err2.Details) // 保留原有Details
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	retryableErrors := []ErrorCode{
		ErrTimeout,
		ErrSerialTimeout,
		ErrEchoTimeout,
		ErrDatabaseConnect,
	}

	for _, code := range retryableErrors {
		err := New(code)
		suite.True(IsRetryable(err), "错误码 %d 应该是可重试的", code)
	}

	// 不可重试的错误
	nonRetryableErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNoCredit,
		ErrCoinRejected,
	}

	for _, code := range nonRetryableErrors {
		err := New(code)
		suite.False(IsRetryable(err), "错误码 %d 不应该是可重试的", code)
	}

	// nil错误
	suite.False(IsRetryable(nil))
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	criticalErrors := []ErrorCode{
		ErrDatabaseConnect,
		ErrSerialPortOpen,
		ErrConfigLoad,
		ErrActuator,
	}

	for _, code := range criticalErrors {
		err := New(code)
		suite.True(IsCritical(err), "错误码 %d 应该是严重错误", code)
	}

	// 非严重错误
	nonCriticalErrors := []ErrorCode{
		ErrInvalidParam,
		ErrCoinRejected,
		ErrNoCredit,
	}

	for _, code := range nonCriticalErrors {
		err := New(code)
		suite.False(IsCritical(err), "错误码 %d 不应该是严重错误", code)
	}

	// nil错误
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestCaptureStack() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

// 运行测试套件
func TestErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
